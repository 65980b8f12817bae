// Package memstore keeps orders, sales and stock in process memory. A unit of
// work runs against a private copy of the data and swaps it in on commit, so
// a failed unit leaves nothing behind. Units are serialised by one mutex and
// must not be nested.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

type state struct {
	orders   map[string]*orders.Order
	sales    map[string]sales.Sale // key: order_id (unik)
	products map[string]inventory.Record
}

func (s *state) clone() *state {
	c := &state{
		orders:   make(map[string]*orders.Order, len(s.orders)),
		sales:    make(map[string]sales.Sale, len(s.sales)),
		products: make(map[string]inventory.Record, len(s.products)),
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	return c
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ store.UnitOfWork = (*Store)(nil)

func New(products ...inventory.Record) *Store {
	s := &Store{
		st: &state{
			orders:   map[string]*orders.Order{},
			sales:    map[string]sales.Sale{},
			products: map[string]inventory.Record{},
		},
		now: time.Now,
	}
	for _, p := range products {
		s.st.products[p.ProductID] = p
	}
	return s
}

// PutProduct inserts or replaces a catalog record outside any unit of work.
func (s *Store) PutProduct(r inventory.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[r.ProductID] = r
	return nil
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &txn{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

type txn struct {
	st  *state
	now func() time.Time
}

func (t *txn) Orders() orders.Repository   { return orderRepo{t} }
func (t *txn) Sales() sales.Repository     { return saleRepo{t} }
func (t *txn) Inventory() inventory.Ledger { return ledger{t} }

type orderRepo struct{ t *txn }

func (r orderRepo) Create(_ context.Context, o *orders.Order) error {
	if _, ok := r.t.st.orders[o.ID]; ok {
		return orders.ErrConcurrentUpdate
	}
	r.t.st.orders[o.ID] = o.Clone()
	return nil
}

func (r orderRepo) Get(_ context.Context, id string) (*orders.Order, error) {
	o, ok := r.t.st.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// Units of work are already serialised, so a plain read holds the "lock".
func (r orderRepo) GetForUpdate(ctx context.Context, id string) (*orders.Order, error) {
	return r.Get(ctx, id)
}

func (r orderRepo) Save(_ context.Context, o *orders.Order, expected orders.Status) error {
	cur, ok := r.t.st.orders[o.ID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	if cur.Status != expected {
		return orders.ErrConcurrentUpdate
	}
	r.t.st.orders[o.ID] = o.Clone()
	return nil
}

func (r orderRepo) ListStalePending(_ context.Context, before time.Time, limit int) ([]string, error) {
	var stale []*orders.Order
	for _, o := range r.t.st.orders {
		if o.Status == orders.StatusPending && o.UpdatedAt.Before(before) {
			stale = append(stale, o)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	ids := make([]string, 0, len(stale))
	for _, o := range stale {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

type saleRepo struct{ t *txn }

func (r saleRepo) Insert(_ context.Context, s sales.Sale) error {
	if _, ok := r.t.st.sales[s.OrderID]; ok {
		return sales.ErrDuplicateSale
	}
	r.t.st.sales[s.OrderID] = s
	return nil
}

func (r saleRepo) GetByOrder(_ context.Context, orderID string) (sales.Sale, error) {
	s, ok := r.t.st.sales[orderID]
	if !ok {
		return sales.Sale{}, sales.ErrSaleNotFound
	}
	return s, nil
}

func (r saleRepo) Update(_ context.Context, s sales.Sale) error {
	if _, ok := r.t.st.sales[s.OrderID]; !ok {
		return sales.ErrSaleNotFound
	}
	r.t.st.sales[s.OrderID] = s
	return nil
}

type ledger struct{ t *txn }

func (l ledger) Get(_ context.Context, productID string) (inventory.Record, error) {
	p, ok := l.t.st.products[productID]
	if !ok {
		return inventory.Record{}, inventory.ErrProductNotFound
	}
	return p, nil
}

func (l ledger) CheckAvailability(_ context.Context, productID string, qty int) (bool, error) {
	p, ok := l.t.st.products[productID]
	if !ok {
		return false, nil
	}
	return p.Covers(qty), nil
}

func (l ledger) Decrement(_ context.Context, productID string, qty int) error {
	if qty < 1 {
		return inventory.ErrInvalidQuantity
	}
	p, ok := l.t.st.products[productID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	if p.StockQuantity < qty {
		return &inventory.InsufficientStockError{ProductID: productID, Required: qty, Available: p.StockQuantity}
	}
	p.StockQuantity -= qty
	p.Available = p.StockQuantity > 0
	p.UpdatedAt = l.t.now().UTC()
	l.t.st.products[productID] = p
	return nil
}

func (l ledger) Restock(_ context.Context, productID string, qty int) (inventory.Record, error) {
	if qty < 1 {
		return inventory.Record{}, inventory.ErrInvalidQuantity
	}
	p, ok := l.t.st.products[productID]
	if !ok {
		return inventory.Record{}, inventory.ErrProductNotFound
	}
	p.StockQuantity += qty
	p.Available = true
	p.UpdatedAt = l.t.now().UTC()
	l.t.st.products[productID] = p
	return p, nil
}
