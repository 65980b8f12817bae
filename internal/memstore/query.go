package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
)

var (
	_ inventory.Catalog = (*Store)(nil)
	_ sales.Query       = (*Store)(nil)
)

func (s *Store) ListProducts(_ context.Context) ([]inventory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Record, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *Store) ListByCustomer(_ context.Context, customerID string) ([]sales.Sale, error) {
	return s.filterSales(func(x sales.Sale) bool { return x.CustomerID == customerID }), nil
}

// ListBetween matches on creation time, half-open [from, to).
func (s *Store) ListBetween(_ context.Context, from, to time.Time) ([]sales.Sale, error) {
	return s.filterSales(func(x sales.Sale) bool {
		return !x.CreatedAt.Before(from) && x.CreatedAt.Before(to)
	}), nil
}

func (s *Store) MonthlyTotals(_ context.Context, from, to time.Time) ([]sales.MonthlyTotal, error) {
	paid := s.filterSales(func(x sales.Sale) bool {
		return x.PaidAt != nil && !x.PaidAt.Before(from) && x.PaidAt.Before(to)
	})
	return sales.AggregateMonthly(paid), nil
}

func (s *Store) filterSales(keep func(sales.Sale) bool) []sales.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []sales.Sale{}
	for _, x := range s.st.sales {
		if keep(x) {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
