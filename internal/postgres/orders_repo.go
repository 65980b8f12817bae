package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type OrderRepo struct{ tx pgx.Tx }

const orderColumns = `id, customer_id, status, total_cents, payment_method, shipping_address,
	contact_email, payment_ref, cancel_reason, created_at, updated_at, paid_at`

func (r *OrderRepo) Create(ctx context.Context, o *orders.Order) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.CustomerID, string(o.Status), o.TotalCents, o.PaymentMethod, o.ShippingAddress,
		o.ContactEmail, o.PaymentRef, o.CancelReason, o.CreatedAt, o.UpdatedAt, o.PaidAt,
	)
	if err != nil {
		return err
	}
	return r.insertItems(ctx, o)
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*orders.Order, error) {
	return r.load(ctx, id, false)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	return r.load(ctx, id, true)
}

func (r *OrderRepo) load(ctx context.Context, id string, lock bool) (*orders.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if lock {
		q += ` FOR UPDATE`
	}
	var (
		o      orders.Order
		status string
	)
	err := r.tx.QueryRow(ctx, q, id).Scan(
		&o.ID, &o.CustomerID, &status, &o.TotalCents, &o.PaymentMethod, &o.ShippingAddress,
		&o.ContactEmail, &o.PaymentRef, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)

	rows, err := r.tx.Query(ctx, `
		SELECT product_id, qty, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	o.Items = []orders.LineItem{}
	for rows.Next() {
		var it orders.LineItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

// Save is a compare-and-swap on status: the row is only written while it
// still holds expected. Line items are rewritten only for carts.
func (r *OrderRepo) Save(ctx context.Context, o *orders.Order, expected orders.Status) error {
	ct, err := r.tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, total_cents=$3, payment_method=$4, shipping_address=$5, contact_email=$6,
		    payment_ref=$7, cancel_reason=$8, updated_at=$9, paid_at=$10
		WHERE id=$1 AND status=$11`,
		o.ID, string(o.Status), o.TotalCents, o.PaymentMethod, o.ShippingAddress, o.ContactEmail,
		o.PaymentRef, o.CancelReason, o.UpdatedAt, o.PaidAt, string(expected),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		var n int
		if err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE id=$1`, o.ID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return orders.ErrOrderNotFound
		}
		return orders.ErrConcurrentUpdate
	}

	if expected != orders.StatusCart {
		return nil
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, o.ID); err != nil {
		return err
	}
	return r.insertItems(ctx, o)
}

func (r *OrderRepo) insertItems(ctx context.Context, o *orders.Order) error {
	if len(o.Items) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i, it := range o.Items {
		b.Queue(`
			INSERT INTO order_items(order_id, position, product_id, qty, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, i, it.ProductID, it.Quantity, it.UnitPriceCents, it.SubtotalCents,
		)
	}
	if err := r.tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert items for order %s: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepo) ListStalePending(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT id FROM orders
		WHERE status='pending' AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
