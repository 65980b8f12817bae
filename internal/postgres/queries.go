package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
)

// Queries serves the read-only listing and reporting endpoints straight
// from the pool, outside any unit of work.
type Queries struct{ DB *pgxpool.Pool }

var (
	_ inventory.Catalog = (*Queries)(nil)
	_ sales.Query       = (*Queries)(nil)
)

func (q *Queries) ListProducts(ctx context.Context) ([]inventory.Record, error) {
	rows, err := q.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Record, error) {
		return scanRecord(row)
	})
}

func (q *Queries) ListByCustomer(ctx context.Context, customerID string) ([]sales.Sale, error) {
	return q.listSales(ctx, `SELECT `+saleColumns+` FROM sales WHERE customer_id=$1 ORDER BY created_at`, customerID)
}

func (q *Queries) ListBetween(ctx context.Context, from, to time.Time) ([]sales.Sale, error) {
	return q.listSales(ctx, `SELECT `+saleColumns+` FROM sales
		WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`, from, to)
}

func (q *Queries) MonthlyTotals(ctx context.Context, from, to time.Time) ([]sales.MonthlyTotal, error) {
	rows, err := q.DB.Query(ctx, `
		SELECT to_char(date_trunc('month', paid_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
		       COUNT(*)::int, COALESCE(SUM(total_cents), 0)::bigint
		FROM sales
		WHERE status='completed' AND paid_at >= $1 AND paid_at < $2
		GROUP BY 1
		ORDER BY 1`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (sales.MonthlyTotal, error) {
		var m sales.MonthlyTotal
		err := row.Scan(&m.Month, &m.Count, &m.TotalCents)
		return m, err
	})
}

func (q *Queries) listSales(ctx context.Context, sql string, args ...any) ([]sales.Sale, error) {
	rows, err := q.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (sales.Sale, error) {
		return scanSale(row)
	})
}
