package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/sales"
)

type SaleRepo struct{ tx pgx.Tx }

const saleColumns = `id, order_id, customer_id, total_cents, status, payment_method,
	shipping_address, created_at, paid_at, cancelled_at`

func (r *SaleRepo) Insert(ctx context.Context, s sales.Sale) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO sales(`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.OrderID, s.CustomerID, s.TotalCents, string(s.Status), s.PaymentMethod,
		s.ShippingAddress, s.CreatedAt, s.PaidAt, s.CancelledAt,
	)
	if isUniqueViolation(err) {
		return sales.ErrDuplicateSale
	}
	return err
}

func (r *SaleRepo) GetByOrder(ctx context.Context, orderID string) (sales.Sale, error) {
	s, err := scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE order_id=$1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return sales.Sale{}, sales.ErrSaleNotFound
	}
	return s, err
}

func (r *SaleRepo) Update(ctx context.Context, s sales.Sale) error {
	ct, err := r.tx.Exec(ctx, `
		UPDATE sales SET status=$2, paid_at=$3, cancelled_at=$4 WHERE order_id=$1`,
		s.OrderID, string(s.Status), s.PaidAt, s.CancelledAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return sales.ErrSaleNotFound
	}
	return nil
}

func scanSale(row pgx.Row) (sales.Sale, error) {
	var (
		s      sales.Sale
		status string
	)
	err := row.Scan(&s.ID, &s.OrderID, &s.CustomerID, &s.TotalCents, &status, &s.PaymentMethod,
		&s.ShippingAddress, &s.CreatedAt, &s.PaidAt, &s.CancelledAt)
	s.Status = sales.Status(status)
	return s, err
}
