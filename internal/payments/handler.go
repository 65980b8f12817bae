// Package payments turns payment-provider confirmations arriving on Kafka
// into ConfirmPayment calls.
package payments

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type Reconciler interface {
	GetOrder(ctx context.Context, actor checkout.Actor, orderID string) (checkout.Result, error)
	ConfirmPayment(ctx context.Context, actor checkout.Actor, orderID, paymentRef string) (checkout.Result, error)
}

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type Handler struct {
	Service     Reconciler
	Dedup       Deduper // optional fast path; ConfirmPayment is idempotent anyway
	Logger      *zap.Logger
	ServiceName string
}

func (h *Handler) log() *zap.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return zap.NewNop()
}

// HandlePaymentConfirmed: dipasang sebagai handler consumer. It returns an
// error only for failures worth retrying; rejected confirmations are logged
// and their offset committed.
func (h *Handler) HandlePaymentConfirmed(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		h.log().Error("dropping undecodable payment message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventPaymentConfirmed {
		return nil
	} // ignore

	// 2) dedup via Redis (pakai event_id)
	if h.Dedup != nil {
		seen, err := h.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			h.log().Warn("dedup lookup failed", zap.String("event_id", env.EventID), zap.Error(err))
		}
		if seen {
			return nil
		}
	}

	// 3) decode payload
	p, err := kafkax.UnwrapPayload[orders.PaymentConfirmedPayload](env.Payload)
	if err != nil || p.OrderID == "" {
		h.log().Error("dropping invalid payment payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	logger := h.log().With(
		zap.String("event_id", env.EventID),
		zap.String("order_id", p.OrderID),
		zap.String("payment_ref", p.PaymentRef),
	)
	actor := checkout.SystemActor(h.ServiceName)

	// 4) nominal harus sama dengan total order
	if p.AmountCents > 0 {
		cur, err := h.Service.GetOrder(ctx, actor, p.OrderID)
		if err != nil {
			return h.settle(logger, err)
		}
		if cur.Order.TotalCents != p.AmountCents {
			logger.Error("payment amount does not match order total",
				zap.Int64("amount_cents", p.AmountCents),
				zap.Int64("total_cents", cur.Order.TotalCents),
			)
			return nil
		}
	}

	// 5) rekonsiliasi atomik
	if _, err := h.Service.ConfirmPayment(ctx, actor, p.OrderID, p.PaymentRef); err != nil {
		return h.settle(logger, err)
	}

	if h.Dedup != nil {
		if err := h.Dedup.Mark(ctx, env.EventID); err != nil {
			logger.Warn("dedup mark failed", zap.Error(err))
		}
	}
	return nil
}

// settle decides whether err is retried (returned) or recorded and skipped.
func (h *Handler) settle(logger *zap.Logger, err error) error {
	switch {
	case checkout.IsIntegrityViolation(err):
		logger.Error("payment confirmation hit an order/sale integrity violation", zap.Error(err))
	case paidAfterExpiry(err):
		logger.Error("payment received for an order already marked unpaid; refund or manual review needed", zap.Error(err))
	case errors.Is(err, inventory.ErrInsufficientStock):
		logger.Error("payment confirmed but stock is insufficient; order left pending", zap.Error(err))
	case errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, checkout.ErrForbidden):
		logger.Warn("payment confirmation rejected", zap.Error(err))
	default:
		return err
	}
	return nil
}

func paidAfterExpiry(err error) bool {
	var te *orders.TransitionError
	return errors.As(err, &te) && te.From == orders.StatusUnpaid
}
