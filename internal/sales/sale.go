package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrDuplicateSale  = errors.New("sale already exists for order")
	ErrSaleNotFound   = errors.New("sale not found for order")
	ErrSaleNotPending = errors.New("sale is not pending")
	ErrOrderNotFrozen = errors.New("order is not pending")
)

// Sale is the reporting view of one order's commercial outcome. It is copied
// from the order when the cart is frozen and never reads order lines again.
type Sale struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id"`
	CustomerID      string     `json:"customer_id"`
	TotalCents      int64      `json:"total_cents"`
	Status          Status     `json:"status"`
	PaymentMethod   string     `json:"payment_method"`
	ShippingAddress string     `json:"shipping_address"`
	CreatedAt       time.Time  `json:"created_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

// MirrorsOrder reports whether the sale agrees with the order's status:
// completed iff paid, cancelled iff unpaid, pending iff pending.
func (s Sale) MirrorsOrder(st orders.Status) bool {
	switch st {
	case orders.StatusPending:
		return s.Status == StatusPending
	case orders.StatusPaid:
		return s.Status == StatusCompleted
	case orders.StatusUnpaid:
		return s.Status == StatusCancelled
	}
	return false
}

func newFor(o *orders.Order, now time.Time) (Sale, error) {
	if o.Status != orders.StatusPending {
		return Sale{}, ErrOrderNotFrozen
	}
	return Sale{
		ID:              uuid.NewString(),
		OrderID:         o.ID,
		CustomerID:      o.CustomerID,
		TotalCents:      o.TotalCents,
		Status:          StatusPending,
		PaymentMethod:   o.PaymentMethod,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       now.UTC(),
	}, nil
}
