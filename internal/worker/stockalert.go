package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/ec-backend/internal/events"
	"github.com/example/ec-backend/internal/infrastructure/store"
)

// StockAlerter watches order.created events and flags products whose stock
// has fallen to or below the threshold, so restocking happens before the
// next sale fails.
type StockAlerter struct {
	products  store.ProductStore
	threshold int
}

func NewStockAlerter(products store.ProductStore, threshold int) *StockAlerter {
	return &StockAlerter{products: products, threshold: threshold}
}

// Handle is an EnvelopeHandler; events other than order.created are ignored.
func (a *StockAlerter) Handle(ctx context.Context, key string, envelope *events.Envelope) error {
	if envelope.Type != events.TypeOrderCreated {
		return nil
	}

	var payload events.OrderCreated
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		return fmt.Errorf("failed to decode order.created: %w", err)
	}

	for _, item := range payload.Items {
		p, err := a.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			// The product may have been removed since the order; not fatal.
			log.Printf("[StockAlert] Could not load product %s from order %s: %v", item.ProductID, payload.OrderNumber, err)
			continue
		}
		if p.Stock <= a.threshold {
			log.Printf("[StockAlert] LOW STOCK: %s (%s) down to %d units after order %s", p.Name, p.ID, p.Stock, payload.OrderNumber)
		}
	}
	return nil
}
