package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

const uniqueViolation = "23505"

// Store runs each unit of work in one READ COMMITTED transaction. Row locks
// (FOR UPDATE) and guarded updates carry the isolation the service needs.
type Store struct{ DB *pgxpool.Pool }

var _ store.UnitOfWork = (*Store)(nil)

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepos{tx: tx}); err != nil {
		return err // rollback via defer
	}
	return tx.Commit(ctx)
}

type txRepos struct{ tx pgx.Tx }

func (t *txRepos) Orders() orders.Repository   { return &OrderRepo{tx: t.tx} }
func (t *txRepos) Sales() sales.Repository     { return &SaleRepo{tx: t.tx} }
func (t *txRepos) Inventory() inventory.Ledger { return &Ledger{tx: t.tx} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
