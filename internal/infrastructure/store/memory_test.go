package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/domain/product"
)

func seedProduct(t *testing.T, s *MemoryStore, id string, stock int) {
	t.Helper()
	err := s.CreateProduct(context.Background(), &product.Product{
		ID: id, Name: "Inverter 3kVA", Price: 450000, Stock: stock, IsActive: true,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestMemoryStore_ReserveStock(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, "p1", 5)

	require.NoError(t, s.ReserveStock(ctx, "p1", 3))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, 3, p.Sales)
}

func TestMemoryStore_ReserveStock_Insufficient(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, "p1", 2)

	err := s.ReserveStock(ctx, "p1", 3)

	var oos *product.OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, 2, oos.Available)
	assert.Equal(t, 3, oos.Requested)

	// The failed reservation must not touch the counters.
	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, 0, p.Sales)
}

func TestMemoryStore_ReserveStock_NotFound(t *testing.T) {
	s := NewMemoryStore()
	err := s.ReserveStock(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, product.ErrProductNotFound)
}

// Stock must never go negative: with N units available, at most N concurrent
// single-unit reservations can succeed.
func TestMemoryStore_ReserveStock_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, "p1", 5)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.ReserveStock(ctx, "p1", 1)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			var oos *product.OutOfStockError
			require.ErrorAs(t, err, &oos)
		}
	}
	assert.Equal(t, 5, succeeded)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 5, p.Sales)
}

func TestMemoryStore_ReleaseStock_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, "p1", 5)

	require.NoError(t, s.ReserveStock(ctx, "p1", 3))
	require.NoError(t, s.ReleaseStock(ctx, "p1", 3))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, 0, p.Sales)
}

func TestMemoryStore_ReleaseStock_ClampsSales(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedProduct(t, s, "p1", 5)

	require.NoError(t, s.ReleaseStock(ctx, "p1", 2))

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
	assert.Equal(t, 0, p.Sales, "sales never goes below zero")
}

func TestMemoryStore_MarkPaid_Idempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	o := &order.Order{
		ID: "o1", CustomerID: "u1", PaymentStatus: order.PaymentPending,
		Status: order.StatusPending, Items: []order.OrderItem{{ProductID: "p1", Quantity: 1}},
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateOrder(ctx, o))

	first := order.PaymentDetails{Method: "paystack", Reference: "ref-1", Amount: 1000}
	applied, err := s.MarkPaid(ctx, "o1", first)
	require.NoError(t, err)
	assert.True(t, applied)

	// A duplicate confirmation, even with different details, is a no-op.
	applied, err = s.MarkPaid(ctx, "o1", order.PaymentDetails{Method: "paystack", Reference: "ref-2", Amount: 9999})
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)
	require.NotNil(t, got.PaymentDetails)
	assert.Equal(t, "ref-1", got.PaymentDetails.Reference, "first confirmation wins")
}

func TestMemoryStore_MarkPaid_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, &order.Order{
		ID: "o1", PaymentStatus: order.PaymentPending, CreatedAt: time.Now(),
	}))

	const attempts = 10
	var wg sync.WaitGroup
	appliedCount := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := s.MarkPaid(ctx, "o1", order.PaymentDetails{Method: "paystack", Reference: "ref"})
			require.NoError(t, err)
			appliedCount <- applied
		}()
	}
	wg.Wait()
	close(appliedCount)

	wins := 0
	for applied := range appliedCount {
		if applied {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one confirmation applies")
}

func TestMemoryStore_MarkPaid_OrderNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.MarkPaid(context.Background(), "missing", order.PaymentDetails{})
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestMemoryStore_UpdateStatus_AppendsHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, &order.Order{
		ID: "o1", Status: order.StatusPending, CreatedAt: time.Now(),
		StatusHistory: []order.HistoryEntry{{Status: order.StatusPending, Note: "Order created"}},
	}))

	require.NoError(t, s.UpdateStatus(ctx, "o1", order.StatusConfirmed,
		order.HistoryEntry{Status: order.StatusConfirmed, Note: "confirmed by admin"}))

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	require.Len(t, got.StatusHistory, 2)
	assert.Equal(t, order.StatusConfirmed, got.StatusHistory[1].Status)
}

func TestMemoryStore_ListOrders_FilterAndPage(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	for i, spec := range []struct {
		customer string
		status   order.Status
	}{
		{"u1", order.StatusPending},
		{"u1", order.StatusShipped},
		{"u2", order.StatusPending},
	} {
		require.NoError(t, s.CreateOrder(ctx, &order.Order{
			ID: string(rune('a' + i)), CustomerID: spec.customer, Status: spec.status,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	orders, total, err := s.ListOrders(ctx, OrderFilter{CustomerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, orders, 2)
	assert.True(t, orders[0].CreatedAt.After(orders[1].CreatedAt), "newest first")

	orders, total, err = s.ListOrders(ctx, OrderFilter{Status: order.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	orders, total, err = s.ListOrders(ctx, OrderFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, orders, 1)
}

func TestMemoryStore_GetOrder_ReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, &order.Order{
		ID: "o1", CreatedAt: time.Now(),
		StatusHistory: []order.HistoryEntry{{Status: order.StatusPending}},
	}))

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	got.StatusHistory[0].Status = order.StatusShipped
	got.Status = order.StatusDelivered

	fresh, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, fresh.StatusHistory[0].Status, "history entries are immutable once appended")
	assert.NotEqual(t, order.StatusDelivered, fresh.Status)
}

func TestMemoryStore_CancelOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, &order.Order{
		ID: "o1", Status: order.StatusPending, CreatedAt: time.Now(),
		StatusHistory: []order.HistoryEntry{{Status: order.StatusPending}},
	}))

	entry := order.HistoryEntry{Status: order.StatusCancelled, Note: "changed my mind"}
	require.NoError(t, s.CancelOrder(ctx, "o1", "changed my mind", entry))

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancelReason)
	assert.Len(t, got.StatusHistory, 2)

	err = s.CancelOrder(ctx, "missing", "x", entry)
	assert.True(t, errors.Is(err, order.ErrOrderNotFound))
}

func TestMemoryStore_CancelOrder_Conditional(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	entry := order.HistoryEntry{Status: order.StatusCancelled}

	for _, status := range []order.Status{order.StatusProcessing, order.StatusShipped, order.StatusDelivered, order.StatusCancelled} {
		require.NoError(t, s.CreateOrder(ctx, &order.Order{
			ID: "o-" + string(status), Status: status, CreatedAt: time.Now(),
		}))
		err := s.CancelOrder(ctx, "o-"+string(status), "too late", entry)
		assert.ErrorIs(t, err, order.ErrNotCancellable, "status %s", status)
	}

	// A second cancel of the same order loses the check-and-set.
	require.NoError(t, s.CreateOrder(ctx, &order.Order{
		ID: "o1", Status: order.StatusConfirmed, CreatedAt: time.Now(),
	}))
	require.NoError(t, s.CancelOrder(ctx, "o1", "first", entry))
	assert.ErrorIs(t, s.CancelOrder(ctx, "o1", "second", entry), order.ErrNotCancellable)

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.CancelReason)
	assert.Len(t, got.StatusHistory, 1, "losing cancel appends nothing")
}

func TestMemoryStore_CancelOrder_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, &order.Order{
		ID: "o1", Status: order.StatusPending, CreatedAt: time.Now(),
	}))

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.CancelOrder(ctx, "o1", "race", order.HistoryEntry{Status: order.StatusCancelled})
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, order.ErrNotCancellable)
		}
	}
	assert.Equal(t, 1, wins, "exactly one cancel applies")

	got, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, got.StatusHistory, 1, "one cancelled history entry")
}
