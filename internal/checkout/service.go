// Package checkout drives an order from cart to pending to paid (or unpaid),
// keeping the order, its sale and the stock ledger in step. It is the only
// writer of orders and sales once a cart is frozen, and the only caller of
// inventory.Ledger.Decrement.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sales"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

const (
	tracerName       = "github.com/ariefcatur/go-storefront-orders/internal/checkout"
	lockKeyPrefix    = "order:"
	expireBatchLimit = 100
	ReasonTimeout    = "payment timeout"
)

type Service struct {
	Store       store.UnitOfWork
	Locker      Locker            // nil: no cross-request lock, row locks only
	Events      EventPublisher    // nil: events dropped
	Statuses    StatusInvalidator // nil: nothing cached
	Logger      *zap.Logger
	Tracer      trace.Tracer
	Now         func() time.Time
	ServiceName string
	// PendingTTL is how long a pending order may wait for payment before
	// ExpireStale marks it unpaid. Zero disables expiry.
	PendingTTL time.Duration
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) log() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

func (s *Service) tracer() trace.Tracer {
	if s.Tracer != nil {
		return s.Tracer
	}
	return otel.Tracer(tracerName)
}

func (s *Service) projection(tx store.Tx) sales.Projection {
	return sales.Projection{Repo: tx.Sales(), Now: s.now}
}

// CreateCart opens an empty cart for the actor.
func (s *Service) CreateCart(ctx context.Context, actor Actor) (*orders.Order, error) {
	o, err := orders.NewCart(actor.CustomerID, s.now())
	if err != nil {
		return nil, err
	}
	err = s.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Orders().Create(ctx, o)
	})
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, actor Actor, orderID string) (Result, error) {
	var res Result
	err := s.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.owns(o) {
			return ErrForbidden
		}
		res.Order = o
		if o.Status == orders.StatusCart {
			return nil
		}
		sale, err := tx.Sales().GetByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("order %s is %s: %w", orderID, o.Status, err)
		}
		res.Sale = &sale
		return nil
	})
	if err != nil {
		s.report(nil, "get_order", orderID, err)
		return Result{}, err
	}
	return res, nil
}

// AddItem prices the line from the catalog at the moment it is added.
func (s *Service) AddItem(ctx context.Context, actor Actor, orderID, productID string, qty int) (*orders.Order, error) {
	return s.mutateCart(ctx, actor, orderID, func(ctx context.Context, tx store.Tx, o *orders.Order) error {
		rec, err := tx.Inventory().Get(ctx, productID)
		if errors.Is(err, inventory.ErrProductNotFound) {
			return &orders.ProductUnavailableError{ProductID: productID}
		}
		if err != nil {
			return err
		}
		if !rec.Available {
			return &orders.ProductUnavailableError{ProductID: productID}
		}
		return o.AddItem(productID, qty, rec.FinalPriceCents(), s.now())
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, actor Actor, orderID, productID string, qty int) (*orders.Order, error) {
	return s.mutateCart(ctx, actor, orderID, func(_ context.Context, _ store.Tx, o *orders.Order) error {
		return o.UpdateQuantity(productID, qty, s.now())
	})
}

func (s *Service) RemoveItem(ctx context.Context, actor Actor, orderID, productID string) (*orders.Order, error) {
	return s.mutateCart(ctx, actor, orderID, func(_ context.Context, _ store.Tx, o *orders.Order) error {
		return o.RemoveItem(productID, s.now())
	})
}

func (s *Service) mutateCart(ctx context.Context, actor Actor, orderID string, fn func(context.Context, store.Tx, *orders.Order) error) (*orders.Order, error) {
	var out *orders.Order
	err := s.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.owns(o) {
			return ErrForbidden
		}
		if o.Status != orders.StatusCart {
			return orders.ErrInvalidState
		}
		if err := fn(ctx, tx, o); err != nil {
			return err
		}
		if err := tx.Orders().Save(ctx, o, orders.StatusCart); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, orderID)
	return out, nil
}

// InitiateCheckout freezes a cart into a pending order and creates its
// pending sale. Stock is only checked here, never reserved: it is taken at
// payment confirmation. Any failure leaves the cart and the ledger untouched.
func (s *Service) InitiateCheckout(ctx context.Context, actor Actor, orderID string, d orders.CheckoutDetails) (Result, error) {
	ctx, span := s.tracer().Start(ctx, "checkout.initiate",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	var res Result
	err := s.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.owns(o) {
			return ErrForbidden
		}
		if o.Status != orders.StatusCart {
			return &orders.TransitionError{OrderID: o.ID, From: o.Status, To: orders.StatusPending}
		}
		if len(o.Items) == 0 {
			return orders.ErrEmptyCart
		}

		available := make(map[string]bool, len(o.Items))
		for _, it := range o.Items {
			ok, err := tx.Inventory().CheckAvailability(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &orders.ProductUnavailableError{ProductID: it.ProductID}
			}
			available[it.ProductID] = true
		}

		if err := o.Freeze(d, func(id string) bool { return available[id] }, s.now()); err != nil {
			return err
		}
		if err := tx.Orders().Save(ctx, o, orders.StatusCart); err != nil {
			return err
		}
		sale, err := s.projection(tx).CreateFor(ctx, o)
		if err != nil {
			return err
		}
		res = Result{Order: o, Sale: &sale}
		return nil
	})
	if err != nil {
		s.report(span, "initiate_checkout", orderID, err)
		return Result{}, err
	}

	s.invalidate(ctx, orderID)
	span.SetAttributes(attribute.Int64("order.total_cents", res.Order.TotalCents))
	span.SetStatus(codes.Ok, "order frozen")
	s.log().Info("checkout initiated",
		zap.String("order_id", orderID),
		zap.String("customer_id", res.Order.CustomerID),
		zap.Int64("total_cents", res.Order.TotalCents),
	)
	s.publish(ctx, orders.TopicOrderCheckedOut, orders.EventOrderCheckedOut, orderID, orders.OrderCheckedOutPayload{
		OrderID:       orderID,
		CustomerID:    res.Order.CustomerID,
		Items:         res.Order.Items,
		TotalCents:    res.Order.TotalCents,
		PaymentMethod: res.Order.PaymentMethod,
	})
	return res, nil
}

// ConfirmPayment takes stock for every line, marks the order paid and the
// sale completed, all in one unit of work. Confirming an order that is
// already paid returns the stored pair and changes nothing.
func (s *Service) ConfirmPayment(ctx context.Context, actor Actor, orderID, paymentRef string) (Result, error) {
	ctx, span := s.tracer().Start(ctx, "checkout.confirm_payment",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if !actor.Admin {
		s.report(span, "confirm_payment", orderID, ErrForbidden)
		return Result{}, ErrForbidden
	}

	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		s.report(span, "confirm_payment", orderID, err)
		return Result{}, err
	}
	defer unlock()

	var (
		res     Result
		changed bool
	)
	err = s.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		changed = false
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == orders.StatusPaid {
			sale, err := tx.Sales().GetByOrder(ctx, orderID)
			if err != nil {
				return fmt.Errorf("paid order %s: %w", orderID, err)
			}
			res = Result{Order: o, Sale: &sale}
			return nil
		}
		if o.Status != orders.StatusPending {
			return &orders.TransitionError{OrderID: o.ID, From: o.Status, To: orders.StatusPaid}
		}

		// urutan product_id tetap supaya dua konfirmasi tidak saling deadlock
		lines := append([]orders.LineItem(nil), o.Items...)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		for _, it := range lines {
			if err := tx.Inventory().Decrement(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		if _, err := o.MarkPaid(paymentRef, s.now()); err != nil {
			return err
		}
		if err := tx.Orders().Save(ctx, o, orders.StatusPending); err != nil {
			return err
		}
		sale, err := s.projection(tx).CompleteFor(ctx, orderID, *o.PaidAt)
		if err != nil {
			return err
		}
		res = Result{Order: o, Sale: &sale}
		changed = true
		return nil
	})
	if err != nil {
		s.report(span, "confirm_payment", orderID, err)
		return Result{}, err
	}

	span.SetAttributes(attribute.Bool("payment.replayed", !changed))
	span.SetStatus(codes.Ok, "order paid")
	if !changed {
		s.log().Info("payment already confirmed", zap.String("order_id", orderID))
		return res, nil
	}
	s.invalidate(ctx, orderID)
	s.log().Info("payment confirmed",
		zap.String("order_id", orderID),
		zap.String("payment_ref", paymentRef),
		zap.Int64("total_cents", res.Order.TotalCents),
	)
	s.publish(ctx, orders.TopicOrderPaid, orders.EventOrderPaid, orderID, orders.OrderPaidPayload{
		OrderID:      orderID,
		CustomerID:   res.Order.CustomerID,
		TotalCents:   res.Order.TotalCents,
		ContactEmail: res.Order.ContactEmail,
		PaidAt:       *res.Order.PaidAt,
	})
	return res, nil
}

// Cancel moves a pending order to unpaid and its sale to cancelled.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID, reason string) (Result, error) {
	ctx, span := s.tracer().Start(ctx, "checkout.cancel",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	unlock, err := s.lock(ctx, orderID)
	if err != nil {
		s.report(span, "cancel", orderID, err)
		return Result{}, err
	}
	defer unlock()

	var res Result
	err = s.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.owns(o) {
			return ErrForbidden
		}
		if err := o.MarkUnpaid(reason, s.now()); err != nil {
			return err
		}
		if err := tx.Orders().Save(ctx, o, orders.StatusPending); err != nil {
			return err
		}
		sale, err := s.projection(tx).CancelFor(ctx, orderID)
		if err != nil {
			return err
		}
		res = Result{Order: o, Sale: &sale}
		return nil
	})
	if err != nil {
		s.report(span, "cancel", orderID, err)
		return Result{}, err
	}

	s.invalidate(ctx, orderID)
	span.SetStatus(codes.Ok, "order unpaid")
	s.log().Info("order cancelled", zap.String("order_id", orderID), zap.String("reason", reason))
	s.publish(ctx, orders.TopicOrderCancelled, orders.EventOrderCancelled, orderID, orders.OrderCancelledPayload{
		OrderID:    orderID,
		CustomerID: res.Order.CustomerID,
		Reason:     reason,
	})
	return res, nil
}

// ExpireStale marks unpaid every pending order that has waited longer than
// PendingTTL. Orders paid in the meantime are skipped.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	if s.PendingTTL <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.PendingTTL)

	var ids []string
	err := s.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ids, err = tx.Orders().ListStalePending(ctx, cutoff, expireBatchLimit)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list stale orders: %w", err)
	}

	sweeper := SystemActor(s.ServiceName + "-sweeper")
	expired := 0
	for _, id := range ids {
		if _, err := s.Cancel(ctx, sweeper, id, ReasonTimeout); err != nil {
			if errors.Is(err, orders.ErrInvalidTransition) {
				continue
			}
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.log().Info("expired stale pending orders", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

func (s *Service) lock(ctx context.Context, orderID string) (func(), error) {
	if s.Locker == nil {
		return func() {}, nil
	}
	unlock, err := s.Locker.Lock(ctx, lockKeyPrefix+orderID)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return unlock, nil
}

func (s *Service) invalidate(ctx context.Context, orderID string) {
	if s.Statuses == nil {
		return
	}
	if err := s.Statuses.Invalidate(ctx, orderID); err != nil {
		s.log().Warn("status cache invalidate failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	if s.Events == nil {
		return
	}
	traceID := ""
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	env, err := orders.NewEnvelope(eventType, s.ServiceName, orderID, traceID, payload, s.now())
	if err == nil {
		err = s.Events.PublishEvent(ctx, topic, env)
	}
	if err != nil {
		s.log().Warn("event not published",
			zap.String("event_type", eventType),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
	}
}

// report logs err at a level that matches its place in the error taxonomy.
// Order/sale desynchronisation is never repaired here, only surfaced.
func (s *Service) report(span trace.Span, op, orderID string, err error) {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	fields := []zap.Field{zap.String("op", op), zap.String("order_id", orderID), zap.Error(err)}
	switch {
	case IsIntegrityViolation(err):
		s.log().Error("order and sale out of sync", fields...)
	case errors.Is(err, orders.ErrInvalidTransition):
		s.log().Warn("invalid order transition", fields...)
	case errors.Is(err, inventory.ErrInsufficientStock):
		s.log().Warn("insufficient stock at payment confirmation", fields...)
	default:
		s.log().Info("request rejected", fields...)
	}
}

// IsIntegrityViolation reports errors that mean an order and its sale have
// diverged.
func IsIntegrityViolation(err error) bool {
	return errors.Is(err, sales.ErrDuplicateSale) ||
		errors.Is(err, sales.ErrSaleNotFound) ||
		errors.Is(err, sales.ErrSaleNotPending) ||
		errors.Is(err, orders.ErrConcurrentUpdate)
}
