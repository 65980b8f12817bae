package orders

import (
	"context"
	"time"
)

// Repository is bound to one unit of work; every call runs inside its transaction.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUpdate locks the order row until the unit of work ends.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	// Save persists o only if the stored status still equals expected.
	Save(ctx context.Context, o *Order, expected Status) error
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]string, error)
}
