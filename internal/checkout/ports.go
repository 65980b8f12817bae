package checkout

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
)

var ErrForbidden = errors.New("not allowed for this customer")

// Actor is the identity an upstream gateway has already verified.
type Actor struct {
	CustomerID string
	Admin      bool
}

// SystemActor is used by webhooks and the expiry sweeper.
func SystemActor(name string) Actor { return Actor{CustomerID: name, Admin: true} }

func (a Actor) owns(o *orders.Order) bool {
	return a.Admin || (a.CustomerID != "" && a.CustomerID == o.CustomerID)
}

// Locker serialises reconciliation of one order across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventPublisher hands events to the notifier pipeline without waiting for delivery.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, env orders.Envelope) error
}

// StatusInvalidator drops a cached status document once its order changes.
type StatusInvalidator interface {
	Invalidate(ctx context.Context, orderID string) error
}

type Result struct {
	Order *orders.Order `json:"order"`
	Sale  *sales.Sale   `json:"sale,omitempty"`
}
