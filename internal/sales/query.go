package sales

import (
	"context"
	"sort"
	"time"
)

// Query is the read-only reporting surface. Sale records are the unit of
// aggregation.
type Query interface {
	ListByCustomer(ctx context.Context, customerID string) ([]Sale, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Sale, error)
	MonthlyTotals(ctx context.Context, from, to time.Time) ([]MonthlyTotal, error)
}

type MonthlyTotal struct {
	Month      string `json:"month"` // YYYY-MM, UTC
	Count      int    `json:"count"`
	TotalCents int64  `json:"total_cents"`
}

// AggregateMonthly folds completed sales into per-month totals keyed by the
// month they were paid in, oldest month first.
func AggregateMonthly(list []Sale) []MonthlyTotal {
	byMonth := map[string]*MonthlyTotal{}
	for _, s := range list {
		if s.Status != StatusCompleted || s.PaidAt == nil {
			continue
		}
		m := s.PaidAt.UTC().Format("2006-01")
		mt, ok := byMonth[m]
		if !ok {
			mt = &MonthlyTotal{Month: m}
			byMonth[m] = mt
		}
		mt.Count++
		mt.TotalCents += s.TotalCents
	}
	out := make([]MonthlyTotal, 0, len(byMonth))
	for _, mt := range byMonth {
		out = append(out, *mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
