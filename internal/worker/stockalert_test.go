package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-backend/internal/domain/product"
	"github.com/example/ec-backend/internal/events"
	"github.com/example/ec-backend/internal/infrastructure/store"
)

func wrapEvent(t *testing.T, eventType string, payload any) *events.Envelope {
	t.Helper()
	envelope, err := events.Wrap(eventType, payload)
	require.NoError(t, err)
	return envelope
}

func TestStockAlerter_Handle(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, &product.Product{ID: "p1", Name: "Cooker", Stock: 3, IsActive: true}))
	require.NoError(t, s.CreateProduct(ctx, &product.Product{ID: "p2", Name: "Blender", Stock: 50, IsActive: true}))

	a := NewStockAlerter(s, 5)

	env := wrapEvent(t, events.TypeOrderCreated, events.OrderCreated{
		OrderID:     "o1",
		OrderNumber: "ORD26080001",
		Items: []events.OrderItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
			{ProductID: "deleted", Quantity: 1}, // missing products are skipped
		},
	})
	assert.NoError(t, a.Handle(ctx, "o1", env))
}

func TestStockAlerter_IgnoresOtherEvents(t *testing.T) {
	a := NewStockAlerter(store.NewMemoryStore(), 5)

	env := wrapEvent(t, events.TypeOrderCancelled, events.OrderCancelled{OrderID: "o1"})
	assert.NoError(t, a.Handle(context.Background(), "o1", env))
}

func TestStockAlerter_BadPayload(t *testing.T) {
	a := NewStockAlerter(store.NewMemoryStore(), 5)

	env := &events.Envelope{
		Type:       events.TypeOrderCreated,
		OccurredAt: time.Now(),
		Data:       []byte(`"not an object"`),
	}
	assert.Error(t, a.Handle(context.Background(), "o1", env))
}
