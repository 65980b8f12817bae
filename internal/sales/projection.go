package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Repository is bound to one unit of work. Insert must report ErrDuplicateSale
// from a uniqueness constraint on order_id.
type Repository interface {
	Insert(ctx context.Context, s Sale) error
	GetByOrder(ctx context.Context, orderID string) (Sale, error)
	Update(ctx context.Context, s Sale) error
}

type Projection struct {
	Repo Repository
	Now  func() time.Time
}

func (p Projection) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateFor records the pending sale of an order that has just been frozen.
func (p Projection) CreateFor(ctx context.Context, o *orders.Order) (Sale, error) {
	s, err := newFor(o, p.now())
	if err != nil {
		return Sale{}, err
	}
	if err := p.Repo.Insert(ctx, s); err != nil {
		return Sale{}, fmt.Errorf("create sale for order %s: %w", o.ID, err)
	}
	return s, nil
}

// CompleteFor marks the sale of a just-paid order completed. A missing sale is
// reported, never recreated.
func (p Projection) CompleteFor(ctx context.Context, orderID string, paidAt time.Time) (Sale, error) {
	s, err := p.Repo.GetByOrder(ctx, orderID)
	if err != nil {
		return Sale{}, fmt.Errorf("complete sale for order %s: %w", orderID, err)
	}
	if s.Status != StatusPending {
		return Sale{}, fmt.Errorf("complete sale for order %s: %w (%s)", orderID, ErrSaleNotPending, s.Status)
	}
	t := paidAt.UTC()
	s.Status = StatusCompleted
	s.PaidAt = &t
	if err := p.Repo.Update(ctx, s); err != nil {
		return Sale{}, fmt.Errorf("complete sale for order %s: %w", orderID, err)
	}
	return s, nil
}

func (p Projection) CancelFor(ctx context.Context, orderID string) (Sale, error) {
	s, err := p.Repo.GetByOrder(ctx, orderID)
	if err != nil {
		return Sale{}, fmt.Errorf("cancel sale for order %s: %w", orderID, err)
	}
	if s.Status != StatusPending {
		return Sale{}, fmt.Errorf("cancel sale for order %s: %w (%s)", orderID, ErrSaleNotPending, s.Status)
	}
	t := p.now()
	s.Status = StatusCancelled
	s.CancelledAt = &t
	if err := p.Repo.Update(ctx, s); err != nil {
		return Sale{}, fmt.Errorf("cancel sale for order %s: %w", orderID, err)
	}
	return s, nil
}
