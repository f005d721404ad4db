package inventory

import (
	"context"
	"fmt"
	"log"

	"github.com/example/ec-backend/internal/infrastructure/store"
)

// Reservation is one product/quantity pair to reserve or release.
type Reservation struct {
	ProductID string
	Quantity  int
}

// Ledger owns the stock and sales counters. All mutations go through the
// store's conditional primitives; the ledger never does read-then-write
// arithmetic on stock.
type Ledger struct {
	products store.ProductStore
}

func NewLedger(products store.ProductStore) *Ledger {
	return &Ledger{products: products}
}

// Reserve atomically decrements stock and increments sales for one product.
// Fails with product.ErrProductNotFound or *product.OutOfStockError.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) error {
	return l.products.ReserveStock(ctx, productID, qty)
}

// Release restores stock and walks back sales (clamped at zero). The caller
// is responsible for invoking it exactly once per cancelled reservation.
func (l *Ledger) Release(ctx context.Context, productID string, qty int) error {
	return l.products.ReleaseStock(ctx, productID, qty)
}

// ReserveAll commits every reservation or none. Each per-product reserve is
// atomic on its own; if one fails partway (a concurrent order won the race
// after our caller's validation pass), the reservations already taken are
// released again before returning, so partial reservation never persists.
func (l *Ledger) ReserveAll(ctx context.Context, reservations []Reservation) error {
	for i, r := range reservations {
		if err := l.Reserve(ctx, r.ProductID, r.Quantity); err != nil {
			l.rollback(ctx, reservations[:i])
			return err
		}
	}
	return nil
}

// ReleaseAll releases every reservation, continuing past per-item failures
// (a product may have been deleted since the order was created). Used by
// cancellation, where incomplete restoration is logged but not fatal.
func (l *Ledger) ReleaseAll(ctx context.Context, reservations []Reservation) {
	for _, r := range reservations {
		if err := l.Release(ctx, r.ProductID, r.Quantity); err != nil {
			log.Printf("[Inventory] Failed to release %d x %s: %v", r.Quantity, r.ProductID, err)
		}
	}
}

func (l *Ledger) rollback(ctx context.Context, taken []Reservation) {
	for _, r := range taken {
		if err := l.Release(ctx, r.ProductID, r.Quantity); err != nil {
			// Nothing else to do here; the release is retried by no one and
			// the discrepancy needs operator attention.
			log.Printf("[Inventory] Rollback failed for %d x %s: %v", r.Quantity, r.ProductID, err)
		}
	}
}

// String implements fmt.Stringer for log lines.
func (r Reservation) String() string {
	return fmt.Sprintf("%dx %s", r.Quantity, r.ProductID)
}
