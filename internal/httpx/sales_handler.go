package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/sales"
)

type SalesHandler struct {
	Query  sales.Query
	Logger *zap.Logger
	Now    func() time.Time
}

func (h *SalesHandler) Register(r chi.Router) {
	r.Get("/sales", h.listSales)
	r.Get("/sales/monthly", h.monthly)
}

// listSales: customers only ever see their own purchases; admins may list any
// customer or a creation-time window.
func (h *SalesHandler) listSales(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	q := r.URL.Query()
	customerID := q.Get("customer_id")
	if !actor.Admin {
		if customerID != "" && customerID != actor.CustomerID {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}
		customerID = actor.CustomerID
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var (
		list []sales.Sale
		err  error
	)
	if customerID != "" {
		list, err = h.Query.ListByCustomer(ctx, customerID)
		list = within(list, from, to)
	} else {
		list, err = h.Query.ListBetween(ctx, from, to)
	}
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SalesHandler) monthly(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).Admin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	from, to, ok := h.window(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	totals, err := h.Query.MonthlyTotals(ctx, from, to)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// window parses from/to (RFC3339 or YYYY-MM-DD); default is the last year.
func (h *SalesHandler) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	to := now().UTC().Add(time.Second)
	from := to.AddDate(-1, 0, 0)
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + p.name})
			return time.Time{}, time.Time{}, false
		}
		*p.dst = t
	}
	if !from.Before(to) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be before to"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, v)
}

func within(list []sales.Sale, from, to time.Time) []sales.Sale {
	out := list[:0]
	for _, s := range list {
		if !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) {
			out = append(out, s)
		}
	}
	return out
}
