package payment

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/events"
	"github.com/example/ec-backend/internal/infrastructure/store"
	"github.com/example/ec-backend/internal/metrics"
)

// Confirmation is one successful charge as reported by a gateway, already
// verified and normalized to the order's currency unit.
type Confirmation struct {
	OrderID       string
	Gateway       string
	Reference     string
	Amount        float64
	Channel       string
	TransactionID string
	PaidAt        time.Time
}

// Publisher is the integration-event sink for payment.confirmed.
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, payload any) error
}

// Reconciler applies gateway confirmations to orders. Every source of
// confirmation (webhook, user-initiated verify, replayed delivery) funnels
// through Apply, so the first-writer-wins guard lives in exactly one place.
type Reconciler struct {
	orders    store.OrderStore
	publisher Publisher
}

func NewReconciler(orders store.OrderStore, publisher Publisher) *Reconciler {
	return &Reconciler{orders: orders, publisher: publisher}
}

// Apply marks the order paid, exactly once per order. Duplicate and replayed
// confirmations are acknowledged without changing the stored payment details;
// the first confirmation's details stick. A confirmation for an order we no
// longer know about is logged and acknowledged so the gateway stops retrying.
func (r *Reconciler) Apply(ctx context.Context, c Confirmation) error {
	details := order.PaymentDetails{
		Method:        c.Gateway,
		Reference:     c.Reference,
		PaidAt:        c.PaidAt,
		Amount:        c.Amount,
		Channel:       c.Channel,
		TransactionID: c.TransactionID,
	}

	applied, err := r.orders.MarkPaid(ctx, c.OrderID, details)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			log.Printf("[Payment] Confirmation %s from %s references unknown order %s, acknowledging", c.Reference, c.Gateway, c.OrderID)
			return nil
		}
		return err
	}
	if !applied {
		metrics.PaymentsDuplicate.WithLabelValues(c.Gateway).Inc()
		log.Printf("[Payment] Order %s already paid, ignoring duplicate confirmation %s from %s", c.OrderID, c.Reference, c.Gateway)
		return nil
	}

	metrics.PaymentsConfirmed.WithLabelValues(c.Gateway).Inc()
	log.Printf("[Payment] Order %s marked paid via %s (ref %s)", c.OrderID, c.Gateway, c.Reference)

	if r.publisher != nil {
		err := r.publisher.Publish(ctx, c.OrderID, events.TypePaymentConfirmed, events.PaymentConfirmed{
			OrderID:   c.OrderID,
			Method:    c.Gateway,
			Reference: c.Reference,
			Amount:    c.Amount,
		})
		if err != nil {
			log.Printf("[Payment] Failed to publish payment.confirmed for %s: %v", c.OrderID, err)
		}
	}
	return nil
}
