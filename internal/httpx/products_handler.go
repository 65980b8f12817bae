package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
)

type ProductsHandler struct {
	Catalog inventory.Catalog
	Service *checkout.Service
	Logger  *zap.Logger
}

type productView struct {
	inventory.Record
	FinalPriceCents int64 `json:"final_price_cents"`
}

type RestockReq struct {
	Quantity int `json:"quantity"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products/{id}/restock", h.restock)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, productView{Record: p, FinalPriceCents: p.FinalPriceCents()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) restock(w http.ResponseWriter, r *http.Request) {
	var req RestockReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Service.Restock(ctx, actorFrom(r), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, productView{Record: rec, FinalPriceCents: rec.FinalPriceCents()})
}
