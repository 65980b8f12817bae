package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// StatusCache is the optional fast path for GET /orders/{id}/status. The
// checkout service invalidates entries on every committed change.
type StatusCache interface {
	Get(ctx context.Context, orderID string) ([]byte, bool, error)
	Set(ctx context.Context, orderID string, doc []byte) error
}

type OrdersHandler struct {
	Service *checkout.Service
	Cache   StatusCache
	Logger  *zap.Logger
}

type AddItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateItemReq struct {
	Quantity int `json:"quantity"`
}

type ConfirmPaymentReq struct {
	PaymentRef string `json:"payment_ref"`
}

type CancelReq struct {
	Reason string `json:"reason"`
}

type statusDoc struct {
	Status    orders.Status `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/carts", h.createCart)
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.getOrder)
		r.Get("/status", h.getStatus)
		r.Post("/items", h.addItem)
		r.Put("/items/{productID}", h.updateItem)
		r.Delete("/items/{productID}", h.removeItem)
		r.Post("/checkout", h.checkout)
		r.Post("/payment", h.confirmPayment)
		r.Post("/cancel", h.cancel)
	})
}

func (h *OrdersHandler) createCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CreateCart(ctx, actorFrom(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := h.Service.GetOrder(ctx, actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	actor := actorFrom(r)
	// 1) coba cache (hanya admin; customer harus lewat cek kepemilikan)
	if h.Cache != nil && actor.Admin {
		if b, ok, err := h.Cache.Get(ctx, orderID); err == nil && ok {
			writeRaw(w, b)
			return
		}
	}

	// 2) fallback store
	res, err := h.Service.GetOrder(ctx, actor, orderID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	b, _ := json.Marshal(statusDoc{Status: res.Order.Status, UpdatedAt: res.Order.UpdatedAt})
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, orderID, b); err != nil {
			h.Logger.Warn("status cache set failed", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	writeRaw(w, b)
}

func (h *OrdersHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemReq
	if err := decodeJSON(r, &req); err != nil || req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.AddItem(ctx, actorFrom(r), chi.URLParam(r, "id"), req.ProductID, req.Quantity)
	h.respondOrder(w, o, err, http.StatusOK)
}

func (h *OrdersHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.UpdateQuantity(ctx, actorFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "productID"), req.Quantity)
	h.respondOrder(w, o, err, http.StatusOK)
}

func (h *OrdersHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.RemoveItem(ctx, actorFrom(r), chi.URLParam(r, "id"), chi.URLParam(r, "productID"))
	h.respondOrder(w, o, err, http.StatusOK)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req orders.CheckoutDetails
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ShippingAddress == "" || req.PaymentMethod == "" || req.ContactEmail == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Service.InitiateCheckout(ctx, actorFrom(r), chi.URLParam(r, "id"), req)
	h.respondResult(w, res, err, http.StatusAccepted)
}

func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Service.ConfirmPayment(ctx, actorFrom(r), chi.URLParam(r, "id"), req.PaymentRef)
	h.respondResult(w, res, err, http.StatusOK)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelReq
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by request"
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Service.Cancel(ctx, actorFrom(r), chi.URLParam(r, "id"), req.Reason)
	h.respondResult(w, res, err, http.StatusOK)
}

func (h *OrdersHandler) respondOrder(w http.ResponseWriter, o *orders.Order, err error, code int) {
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, code, o)
}

func (h *OrdersHandler) respondResult(w http.ResponseWriter, res checkout.Result, err error, code int) {
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, code, res)
}

func writeRaw(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
