package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-backend/internal/domain/product"
	"github.com/example/ec-backend/internal/infrastructure/store"
)

func newTestLedger(t *testing.T, stocks map[string]int) (*Ledger, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	for id, stock := range stocks {
		require.NoError(t, s.CreateProduct(context.Background(), &product.Product{
			ID: id, Name: "Product " + id, Price: 100, Stock: stock, IsActive: true,
			CreatedAt: time.Now(),
		}))
	}
	return NewLedger(s), s
}

func stockOf(t *testing.T, s *store.MemoryStore, id string) (int, int) {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock, p.Sales
}

func TestLedger_ReserveAll_Success(t *testing.T) {
	ledger, s := newTestLedger(t, map[string]int{"a": 10, "b": 5})

	err := ledger.ReserveAll(context.Background(), []Reservation{
		{ProductID: "a", Quantity: 4},
		{ProductID: "b", Quantity: 5},
	})
	require.NoError(t, err)

	stock, sales := stockOf(t, s, "a")
	assert.Equal(t, 6, stock)
	assert.Equal(t, 4, sales)
	stock, sales = stockOf(t, s, "b")
	assert.Equal(t, 0, stock)
	assert.Equal(t, 5, sales)
}

// A failure partway through must roll back reservations already taken, so no
// partial reservation ever persists.
func TestLedger_ReserveAll_RollsBackOnFailure(t *testing.T) {
	ledger, s := newTestLedger(t, map[string]int{"a": 10, "b": 2})

	err := ledger.ReserveAll(context.Background(), []Reservation{
		{ProductID: "a", Quantity: 4},
		{ProductID: "b", Quantity: 3}, // exceeds stock
	})

	var oos *product.OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "b", oos.ProductID)
	assert.Equal(t, 2, oos.Available)

	stock, sales := stockOf(t, s, "a")
	assert.Equal(t, 10, stock, "earlier reservation rolled back")
	assert.Equal(t, 0, sales)
}

func TestLedger_ReserveAll_MissingProduct(t *testing.T) {
	ledger, s := newTestLedger(t, map[string]int{"a": 10})

	err := ledger.ReserveAll(context.Background(), []Reservation{
		{ProductID: "a", Quantity: 1},
		{ProductID: "ghost", Quantity: 1},
	})

	require.ErrorIs(t, err, product.ErrProductNotFound)
	stock, _ := stockOf(t, s, "a")
	assert.Equal(t, 10, stock)
}

func TestLedger_ReleaseAll_SkipsMissingProducts(t *testing.T) {
	ledger, s := newTestLedger(t, map[string]int{"a": 0, "b": 0})
	ctx := context.Background()

	// Release across one product that no longer exists and one live one;
	// the live one must still be restored.
	ledger.ReleaseAll(ctx, []Reservation{
		{ProductID: "ghost", Quantity: 2},
		{ProductID: "b", Quantity: 2},
	})

	stock, _ := stockOf(t, s, "b")
	assert.Equal(t, 2, stock)
}

func TestLedger_ReserveRelease_RoundTrip(t *testing.T) {
	ledger, s := newTestLedger(t, map[string]int{"a": 5})
	ctx := context.Background()

	require.NoError(t, ledger.Reserve(ctx, "a", 3))
	require.NoError(t, ledger.Release(ctx, "a", 3))

	stock, sales := stockOf(t, s, "a")
	assert.Equal(t, 5, stock)
	assert.Equal(t, 0, sales)
}
