package inventory

import "context"

// Ledger is the sole authority on stock. Implementations are bound to a unit
// of work, so Decrement only becomes visible when that unit commits.
type Ledger interface {
	Get(ctx context.Context, productID string) (Record, error)
	// CheckAvailability never mutates stock.
	CheckAvailability(ctx context.Context, productID string, qty int) (bool, error)
	// Decrement subtracts qty in a single guarded read-modify-write and
	// returns *InsufficientStockError, leaving stock untouched, when qty
	// exceeds what is left. A record that reaches zero stays in place with
	// Available=false.
	Decrement(ctx context.Context, productID string, qty int) error
	Restock(ctx context.Context, productID string, qty int) (Record, error)
}

// Catalog is the read-only listing used by the product endpoint.
type Catalog interface {
	ListProducts(ctx context.Context) ([]Record, error)
}
