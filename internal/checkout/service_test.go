package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvent struct {
	Topic string
	Env   orders.Envelope
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) PublishEvent(_ context.Context, topic string, env orders.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Topic: topic, Env: env})
	return nil
}

func (r *eventRecorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}

func (r *eventRecorder) count(topic string) int {
	n := 0
	for _, t := range r.topics() {
		if t == topic {
			n++
		}
	}
	return n
}

type invalidations struct {
	mu  sync.Mutex
	ids []string
}

func (i *invalidations) Invalidate(_ context.Context, orderID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, orderID)
	return nil
}

func (i *invalidations) reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = nil
}

func (i *invalidations) of(orderID string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, id := range i.ids {
		if id == orderID {
			n++
		}
	}
	return n
}

func catalog() []inventory.Record {
	return []inventory.Record{
		{ProductID: "bracelet", Name: "Tennis Bracelet", StockQuantity: 2, UnitPriceCents: 30000, Available: true},
		{ProductID: "necklace", Name: "Pearl Necklace", StockQuantity: 5, UnitPriceCents: 50000, DiscountPercent: 10, Available: true},
		{ProductID: "ring", Name: "Solitaire Ring", StockQuantity: 1, UnitPriceCents: 100000, Available: true},
		{ProductID: "pendant", Name: "Sapphire Pendant", StockQuantity: 0, UnitPriceCents: 8000, Available: false},
	}
}

var (
	alice = Actor{CustomerID: "alice"}
	bob   = Actor{CustomerID: "bob"}
	admin = SystemActor("payments-webhook")
)

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	mem    *memstore.Store
	events *eventRecorder
	cached *invalidations
	clock  *clock
	svc    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.mem = memstore.New(catalog()...)
	s.events = &eventRecorder{}
	s.cached = &invalidations{}
	s.clock = &clock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	s.svc = &Service{
		Store:       s.mem,
		Locker:      NewLocalLocker(),
		Events:      s.events,
		Statuses:    s.cached,
		Logger:      zaptest.NewLogger(s.T()),
		Now:         s.clock.Now,
		ServiceName: "storefront-test",
		PendingTTL:  time.Hour,
	}
}

func (s *ServiceSuite) cart(actor Actor, lines map[string]int) string {
	o, err := s.svc.CreateCart(s.ctx, actor)
	s.Require().NoError(err)
	for id, qty := range lines {
		_, err := s.svc.AddItem(s.ctx, actor, o.ID, id, qty)
		s.Require().NoError(err)
	}
	return o.ID
}

func (s *ServiceSuite) pending(actor Actor, lines map[string]int) string {
	id := s.cart(actor, lines)
	_, err := s.svc.InitiateCheckout(s.ctx, actor, id, details())
	s.Require().NoError(err)
	return id
}

func (s *ServiceSuite) stock(productID string) inventory.Record {
	var rec inventory.Record
	s.Require().NoError(s.mem.Do(s.ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		rec, err = tx.Inventory().Get(ctx, productID)
		return err
	}))
	return rec
}

func (s *ServiceSuite) state(orderID string) (*orders.Order, *sales.Sale) {
	res, err := s.svc.GetOrder(s.ctx, admin, orderID)
	s.Require().NoError(err)
	return res.Order, res.Sale
}

func details() orders.CheckoutDetails {
	return orders.CheckoutDetails{ShippingAddress: "Jl. Braga 10, Bandung", PaymentMethod: "card", ContactEmail: "alice@example.com"}
}

func (s *ServiceSuite) TestHappyPath() {
	id := s.cart(alice, map[string]int{"ring": 1, "necklace": 2})

	res, err := s.svc.InitiateCheckout(s.ctx, alice, id, details())
	s.Require().NoError(err)
	s.Equal(orders.StatusPending, res.Order.Status)
	s.Equal(int64(100000+2*45000), res.Order.TotalCents)
	s.Require().NotNil(res.Sale)
	s.Equal(sales.StatusPending, res.Sale.Status)
	s.Equal(res.Order.TotalCents, res.Sale.TotalCents)
	s.Equal(1, s.stock("ring").StockQuantity, "checkout does not take stock")

	res, err = s.svc.ConfirmPayment(s.ctx, admin, id, "pay-123")
	s.Require().NoError(err)
	s.Equal(orders.StatusPaid, res.Order.Status)
	s.Equal(sales.StatusCompleted, res.Sale.Status)
	s.Require().NotNil(res.Order.PaidAt)
	s.Equal(*res.Order.PaidAt, *res.Sale.PaidAt)

	ring := s.stock("ring")
	s.Zero(ring.StockQuantity)
	s.False(ring.Available)
	s.Equal(3, s.stock("necklace").StockQuantity)

	s.Equal([]string{orders.TopicOrderCheckedOut, orders.TopicOrderPaid}, s.events.topics())
	paid := s.events.events[1].Env
	s.Equal(orders.EventOrderPaid, paid.EventType)
	s.Equal(id, paid.CorrelationID)
}

func (s *ServiceSuite) TestInsufficientStockAtConfirmation() {
	first := s.pending(alice, map[string]int{"ring": 1})
	second := s.pending(bob, map[string]int{"ring": 1})

	_, err := s.svc.ConfirmPayment(s.ctx, admin, first, "pay-1")
	s.Require().NoError(err)

	_, err = s.svc.ConfirmPayment(s.ctx, admin, second, "pay-2")
	var ise *inventory.InsufficientStockError
	s.Require().True(errors.As(err, &ise))
	s.Equal("ring", ise.ProductID)

	o, sale := s.state(second)
	s.Equal(orders.StatusPending, o.Status)
	s.Equal(sales.StatusPending, sale.Status)
	s.Nil(o.PaidAt)
	s.Zero(s.stock("ring").StockQuantity)
	s.Equal(1, s.events.count(orders.TopicOrderPaid))
}

func (s *ServiceSuite) TestConfirmIsIdempotent() {
	id := s.pending(alice, map[string]int{"necklace": 2})

	first, err := s.svc.ConfirmPayment(s.ctx, admin, id, "pay-1")
	s.Require().NoError(err)
	second, err := s.svc.ConfirmPayment(s.ctx, admin, id, "pay-1")
	s.Require().NoError(err)

	s.Equal(first.Order, second.Order)
	s.Equal(first.Sale, second.Sale)
	s.Equal(3, s.stock("necklace").StockQuantity)
	s.Equal(1, s.events.count(orders.TopicOrderPaid))
}

func (s *ServiceSuite) TestCheckoutRejectsUnavailableProduct() {
	id := s.cart(alice, map[string]int{"bracelet": 1, "ring": 1})
	s.Require().NoError(s.mem.PutProduct(inventory.Record{ProductID: "ring", UnitPriceCents: 100000}))

	_, err := s.svc.InitiateCheckout(s.ctx, alice, id, details())
	var pu *orders.ProductUnavailableError
	s.Require().True(errors.As(err, &pu))
	s.Equal("ring", pu.ProductID)

	res, err := s.svc.GetOrder(s.ctx, alice, id)
	s.Require().NoError(err)
	s.Equal(orders.StatusCart, res.Order.Status)
	s.Nil(res.Sale)
	s.Require().NoError(s.mem.Do(s.ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Sales().GetByOrder(ctx, id)
		s.ErrorIs(err, sales.ErrSaleNotFound)
		return nil
	}))
	s.Empty(s.events.topics())
}

func (s *ServiceSuite) TestCheckoutRejectsQuantityAboveStock() {
	id := s.cart(alice, map[string]int{"bracelet": 3})
	_, err := s.svc.InitiateCheckout(s.ctx, alice, id, details())
	s.ErrorIs(err, orders.ErrProductUnavailable)
}

func (s *ServiceSuite) TestAddItem() {
	id := s.cart(alice, nil)

	_, err := s.svc.AddItem(s.ctx, alice, id, "pendant", 1)
	s.ErrorIs(err, orders.ErrProductUnavailable)
	_, err = s.svc.AddItem(s.ctx, alice, id, "tiara", 1)
	s.ErrorIs(err, orders.ErrProductUnavailable)
	_, err = s.svc.AddItem(s.ctx, alice, id, "ring", 0)
	s.ErrorIs(err, orders.ErrInvalidQuantity)
	_, err = s.svc.AddItem(s.ctx, bob, id, "ring", 1)
	s.ErrorIs(err, ErrForbidden)

	o, err := s.svc.AddItem(s.ctx, alice, id, "necklace", 1)
	s.Require().NoError(err)
	s.Equal(int64(45000), o.Items[0].UnitPriceCents, "priced at the discounted final price")

	o, err = s.svc.UpdateQuantity(s.ctx, alice, id, "necklace", 3)
	s.Require().NoError(err)
	s.Equal(int64(135000), o.TotalCents)

	o, err = s.svc.RemoveItem(s.ctx, alice, id, "necklace")
	s.Require().NoError(err)
	s.Zero(o.TotalCents)

	_, err = s.svc.InitiateCheckout(s.ctx, alice, id, details())
	s.ErrorIs(err, orders.ErrEmptyCart)
}

// A failing line rolls back the lines already decremented.
func (s *ServiceSuite) TestConfirmationIsAtomic() {
	id := s.pending(alice, map[string]int{"bracelet": 1, "ring": 1})
	s.Require().NoError(s.mem.PutProduct(inventory.Record{ProductID: "ring", UnitPriceCents: 100000}))

	_, err := s.svc.ConfirmPayment(s.ctx, admin, id, "pay-1")
	s.ErrorIs(err, inventory.ErrInsufficientStock)

	s.Equal(2, s.stock("bracelet").StockQuantity)
	o, sale := s.state(id)
	s.Equal(orders.StatusPending, o.Status)
	s.Equal(sales.StatusPending, sale.Status)
}

func (s *ServiceSuite) TestFrozenOrderRejectsCartEdits() {
	id := s.pending(alice, map[string]int{"necklace": 1})

	_, err := s.svc.AddItem(s.ctx, alice, id, "bracelet", 1)
	s.ErrorIs(err, orders.ErrInvalidState)
	_, err = s.svc.UpdateQuantity(s.ctx, alice, id, "necklace", 2)
	s.ErrorIs(err, orders.ErrInvalidState)
	_, err = s.svc.RemoveItem(s.ctx, alice, id, "necklace")
	s.ErrorIs(err, orders.ErrInvalidState)

	o, _ := s.state(id)
	s.Equal(int64(45000), o.TotalCents)
	s.Len(o.Items, 1)

	_, err = s.svc.InitiateCheckout(s.ctx, alice, id, details())
	s.ErrorIs(err, orders.ErrInvalidTransition)
}

func (s *ServiceSuite) TestConfirmRules() {
	cartID := s.cart(alice, map[string]int{"necklace": 1})
	_, err := s.svc.ConfirmPayment(s.ctx, admin, cartID, "pay-1")
	s.ErrorIs(err, orders.ErrInvalidTransition)

	id := s.pending(alice, map[string]int{"necklace": 1})
	_, err = s.svc.ConfirmPayment(s.ctx, alice, id, "pay-1")
	s.ErrorIs(err, ErrForbidden)

	_, err = s.svc.ConfirmPayment(s.ctx, admin, "missing", "pay-1")
	s.ErrorIs(err, orders.ErrOrderNotFound)
}

func (s *ServiceSuite) TestConcurrentConfirmSameOrder() {
	id := s.pending(alice, map[string]int{"bracelet": 2})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.ConfirmPayment(s.ctx, admin, id, "pay-1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		s.NoError(err)
	}
	s.Zero(s.stock("bracelet").StockQuantity)
	s.Equal(1, s.events.count(orders.TopicOrderPaid))
}

func (s *ServiceSuite) TestConcurrentConfirmCompetingOrders() {
	a := s.pending(alice, map[string]int{"ring": 1})
	b := s.pending(bob, map[string]int{"ring": 1})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a, b} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = s.svc.ConfirmPayment(s.ctx, admin, id, "pay")
		}(i, id)
	}
	wg.Wait()

	ok, short := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, inventory.ErrInsufficientStock):
			short++
		}
	}
	s.Equal(1, ok)
	s.Equal(1, short)
	s.Zero(s.stock("ring").StockQuantity)
}

func (s *ServiceSuite) TestCancel() {
	id := s.pending(alice, map[string]int{"bracelet": 1})

	_, err := s.svc.Cancel(s.ctx, bob, id, "changed my mind")
	s.ErrorIs(err, ErrForbidden)

	res, err := s.svc.Cancel(s.ctx, alice, id, "changed my mind")
	s.Require().NoError(err)
	s.Equal(orders.StatusUnpaid, res.Order.Status)
	s.Equal(sales.StatusCancelled, res.Sale.Status)
	s.Equal("changed my mind", res.Order.CancelReason)

	_, err = s.svc.ConfirmPayment(s.ctx, admin, id, "pay-late")
	s.ErrorIs(err, orders.ErrInvalidTransition)
	s.Equal(2, s.stock("bracelet").StockQuantity)

	_, err = s.svc.Cancel(s.ctx, alice, id, "again")
	s.ErrorIs(err, orders.ErrInvalidTransition)
	s.Equal(1, s.events.count(orders.TopicOrderCancelled))
}

func (s *ServiceSuite) TestExpireStale() {
	stale := s.pending(alice, map[string]int{"bracelet": 1})
	s.clock.Advance(50 * time.Minute)
	fresh := s.pending(bob, map[string]int{"necklace": 1})
	paid := s.pending(bob, map[string]int{"ring": 1})
	_, err := s.svc.ConfirmPayment(s.ctx, admin, paid, "pay")
	s.Require().NoError(err)

	s.clock.Advance(20 * time.Minute)
	n, err := s.svc.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	o, sale := s.state(stale)
	s.Equal(orders.StatusUnpaid, o.Status)
	s.Equal(ReasonTimeout, o.CancelReason)
	s.Equal(sales.StatusCancelled, sale.Status)

	o, _ = s.state(fresh)
	s.Equal(orders.StatusPending, o.Status)
	o, _ = s.state(paid)
	s.Equal(orders.StatusPaid, o.Status)

	s.svc.PendingTTL = 0
	n, err = s.svc.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestCachedStatusDroppedOnEveryChange() {
	id := s.cart(alice, map[string]int{"bracelet": 1})
	s.Equal(1, s.cached.of(id), "cart edit")

	s.cached.reset()
	_, err := s.svc.InitiateCheckout(s.ctx, alice, id, details())
	s.Require().NoError(err)
	s.Equal(1, s.cached.of(id), "checkout")

	s.cached.reset()
	_, err = s.svc.ConfirmPayment(s.ctx, admin, id, "pay-1")
	s.Require().NoError(err)
	s.Equal(1, s.cached.of(id), "payment")

	s.cached.reset()
	_, err = s.svc.ConfirmPayment(s.ctx, admin, id, "pay-1")
	s.Require().NoError(err)
	s.Zero(s.cached.of(id), "replayed payment changes nothing")

	stale := s.pending(bob, map[string]int{"necklace": 1})
	s.cached.reset()
	s.clock.Advance(2 * time.Hour)
	n, err := s.svc.ExpireStale(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
	s.Equal(1, s.cached.of(stale), "sweeper expiry")

	s.cached.reset()
	_, err = s.svc.ConfirmPayment(s.ctx, admin, stale, "late")
	s.ErrorIs(err, orders.ErrInvalidTransition)
	s.Zero(s.cached.of(stale), "rejected change")
}

func (s *ServiceSuite) TestGetOrder() {
	id := s.pending(alice, map[string]int{"bracelet": 1})

	_, err := s.svc.GetOrder(s.ctx, bob, id)
	s.ErrorIs(err, ErrForbidden)
	_, err = s.svc.GetOrder(s.ctx, alice, "missing")
	s.ErrorIs(err, orders.ErrOrderNotFound)

	res, err := s.svc.GetOrder(s.ctx, alice, id)
	s.Require().NoError(err)
	s.Require().NotNil(res.Sale)
	s.True(res.Sale.MirrorsOrder(res.Order.Status))
}

func (s *ServiceSuite) TestCreateCartRequiresCustomer() {
	_, err := s.svc.CreateCart(s.ctx, Actor{})
	s.ErrorIs(err, orders.ErrMissingCustomer)
}

func (s *ServiceSuite) TestRestock() {
	_, err := s.svc.Restock(s.ctx, alice, "pendant", 2)
	s.ErrorIs(err, ErrForbidden)

	rec, err := s.svc.Restock(s.ctx, admin, "pendant", 2)
	s.Require().NoError(err)
	s.Equal(2, rec.StockQuantity)
	s.True(rec.Available)

	_, err = s.svc.Restock(s.ctx, admin, "tiara", 1)
	s.ErrorIs(err, inventory.ErrProductNotFound)
	_, err = s.svc.Restock(s.ctx, admin, "pendant", 0)
	s.ErrorIs(err, inventory.ErrInvalidQuantity)
}

func TestIsIntegrityViolation(t *testing.T) {
	for _, err := range []error{sales.ErrDuplicateSale, sales.ErrSaleNotFound, sales.ErrSaleNotPending, orders.ErrConcurrentUpdate} {
		if !IsIntegrityViolation(errors.Join(errors.New("ctx"), err)) {
			t.Errorf("%v should be an integrity violation", err)
		}
	}
	if IsIntegrityViolation(inventory.ErrInsufficientStock) {
		t.Error("insufficient stock is a business outcome")
	}
}
