// Package store declares the unit of work the reconciliation service runs its
// cross-entity transitions in.
package store

import (
	"context"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
)

// Tx exposes repositories that all read and write through the same transaction.
type Tx interface {
	Orders() orders.Repository
	Sales() sales.Repository
	Inventory() inventory.Ledger
}

// UnitOfWork runs fn in one transaction: it commits when fn returns nil and
// rolls back every write otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
