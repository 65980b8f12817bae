package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
)

type Ledger struct{ tx pgx.Tx }

const productColumns = `id, name, stock_quantity, unit_price_cents, discount_percent, available, updated_at`

func (l *Ledger) Get(ctx context.Context, productID string) (inventory.Record, error) {
	rec, err := scanRecord(l.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Record{}, inventory.ErrProductNotFound
	}
	return rec, err
}

func (l *Ledger) CheckAvailability(ctx context.Context, productID string, qty int) (bool, error) {
	var ok bool
	err := l.tx.QueryRow(ctx, `
		SELECT available AND stock_quantity >= $2 FROM products WHERE id=$1`, productID, qty).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return ok, err
}

// Decrement is one conditional UPDATE; the stock guard is evaluated by
// Postgres under the row lock, so concurrent callers cannot both take the
// last unit.
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return inventory.ErrInvalidQuantity
	}
	ct, err := l.tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    available = stock_quantity - $2 > 0,
		    updated_at = now()
		WHERE id=$1 AND stock_quantity >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var stock int
	err = l.tx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return &inventory.InsufficientStockError{ProductID: productID, Required: qty, Available: stock}
}

func (l *Ledger) Restock(ctx context.Context, productID string, qty int) (inventory.Record, error) {
	if qty < 1 {
		return inventory.Record{}, inventory.ErrInvalidQuantity
	}
	rec, err := scanRecord(l.tx.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, available = TRUE, updated_at = now()
		WHERE id=$1
		RETURNING `+productColumns, productID, qty))
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Record{}, inventory.ErrProductNotFound
	}
	return rec, err
}

func scanRecord(row pgx.Row) (inventory.Record, error) {
	var r inventory.Record
	err := row.Scan(&r.ProductID, &r.Name, &r.StockQuantity, &r.UnitPriceCents, &r.DiscountPercent, &r.Available, &r.UpdatedAt)
	return r, err
}
