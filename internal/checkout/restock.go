package checkout

import (
	"context"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

// Restock adds stock and makes the product sellable again. Admin only.
func (s *Service) Restock(ctx context.Context, actor Actor, productID string, qty int) (inventory.Record, error) {
	if !actor.Admin {
		return inventory.Record{}, ErrForbidden
	}
	var rec inventory.Record
	err := s.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rec, err = tx.Inventory().Restock(ctx, productID, qty)
		return err
	})
	if err != nil {
		return inventory.Record{}, err
	}
	s.log().Info("product restocked",
		zap.String("product_id", productID),
		zap.Int("added", qty),
		zap.Int("stock_quantity", rec.StockQuantity),
	)
	return rec, nil
}
