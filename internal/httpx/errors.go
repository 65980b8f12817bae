package httpx

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

type errorResp struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ProductID string `json:"product_id,omitempty"`
}

// writeError maps the domain taxonomy onto HTTP. Integrity violations are
// already logged by the service and surface as 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	resp := errorResp{Error: err.Error()}
	code := http.StatusInternalServerError

	var unavailable *orders.ProductUnavailableError
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.As(err, &unavailable):
		code, resp.Code, resp.ProductID = http.StatusUnprocessableEntity, "product_unavailable", unavailable.ProductID
	case errors.As(err, &insufficient):
		code, resp.Code, resp.ProductID = http.StatusConflict, "insufficient_stock", insufficient.ProductID
	case errors.Is(err, orders.ErrEmptyCart):
		code, resp.Code = http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, orders.ErrInvalidQuantity), errors.Is(err, inventory.ErrInvalidQuantity):
		code, resp.Code = http.StatusUnprocessableEntity, "invalid_quantity"
	case errors.Is(err, orders.ErrInvalidState):
		code, resp.Code = http.StatusConflict, "invalid_state"
	case errors.Is(err, orders.ErrInvalidTransition):
		code, resp.Code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, orders.ErrOrderNotFound):
		code, resp.Code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, orders.ErrItemNotFound):
		code, resp.Code = http.StatusNotFound, "item_not_found"
	case errors.Is(err, inventory.ErrProductNotFound):
		code, resp.Code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, checkout.ErrForbidden):
		code, resp.Code = http.StatusForbidden, "forbidden"
	case errors.Is(err, redisx.ErrLockNotAcquired), errors.Is(err, context.DeadlineExceeded):
		code, resp.Code = http.StatusServiceUnavailable, "busy"
	case checkout.IsIntegrityViolation(err):
		resp.Code, resp.Error = "integrity_violation", "order state is inconsistent; support has been notified"
	default:
		logger.Error("unhandled error", zap.Error(err))
		resp.Code, resp.Error = "internal", "internal error"
	}
	writeJSON(w, code, resp)
}
