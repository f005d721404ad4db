package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/domain/product"
	"github.com/example/ec-backend/internal/events"
	"github.com/example/ec-backend/internal/infrastructure/store"
	"github.com/example/ec-backend/internal/inventory"
	"github.com/example/ec-backend/internal/metrics"
)

var (
	ErrForbidden    = errors.New("not authorized to access this order")
	ErrInvalidInput = errors.New("invalid input")
)

// Principal is the authenticated caller, resolved by the auth middleware.
type Principal struct {
	UserID string
	Admin  bool
}

func (p Principal) canAccess(o *order.Order) bool {
	return p.Admin || o.OwnedBy(p.UserID)
}

// Publisher is the integration-event sink. Publishing is best-effort; the
// service logs failures and carries on.
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, payload any) error
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CreateInput struct {
	Items           []ItemInput           `json:"items"`
	ShippingAddress order.ShippingAddress `json:"shipping_address"`
	PaymentMethod   order.PaymentMethod   `json:"payment_method"`
	ShippingFee     float64               `json:"shipping_fee"`
	Tax             float64               `json:"tax"`
	Notes           string                `json:"notes,omitempty"`
}

type ListInput struct {
	Status order.Status
	Page   int
	Limit  int
}

// Service orchestrates order creation, reads, status changes and
// cancellation against the inventory ledger and the order store.
type Service struct {
	orders    store.OrderStore
	products  store.ProductStore
	ledger    *inventory.Ledger
	publisher Publisher
}

func NewService(orders store.OrderStore, products store.ProductStore, ledger *inventory.Ledger, publisher Publisher) *Service {
	return &Service{orders: orders, products: products, ledger: ledger, publisher: publisher}
}

// Create places an order in two phases: every item is validated against
// current stock with no writes, then all reservations are committed through
// the ledger's atomic conditional decrements. Item price, name and image are
// snapshotted from the catalog at this moment, never trusted from the client.
func (s *Service) Create(ctx context.Context, customerID string, in CreateInput) (*order.Order, error) {
	if len(in.Items) == 0 {
		return nil, order.ErrEmptyOrder
	}
	if !in.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, in.PaymentMethod)
	}
	if in.ShippingAddress.Country == "" {
		in.ShippingAddress.Country = order.DefaultCountry
	}
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Phase 1: resolve and validate every item before touching any counter.
	items := make([]order.OrderItem, 0, len(in.Items))
	reservations := make([]inventory.Reservation, 0, len(in.Items))
	var subtotal float64
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, order.ErrInvalidQuantity
		}
		p, err := s.products.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Stock < it.Quantity {
			metrics.OrdersOutOfStock.Inc()
			return nil, &product.OutOfStockError{
				ProductID: p.ID, Name: p.Name, Requested: it.Quantity, Available: p.Stock,
			}
		}
		lineTotal := p.Price * float64(it.Quantity)
		items = append(items, order.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
			Image:     p.PrimaryImage(),
			Subtotal:  lineTotal,
		})
		reservations = append(reservations, inventory.Reservation{ProductID: p.ID, Quantity: it.Quantity})
		subtotal += lineTotal
	}

	// Phase 2: commit all reservations; the ledger rolls back on a lost race.
	if err := s.ledger.ReserveAll(ctx, reservations); err != nil {
		var oos *product.OutOfStockError
		if errors.As(err, &oos) {
			metrics.OrdersOutOfStock.Inc()
		}
		return nil, err
	}

	now := time.Now()
	o := &order.Order{
		ID:              uuid.New().String(),
		OrderNumber:     order.NewOrderNumber(now),
		CustomerID:      customerID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   order.PaymentPending,
		Status:          order.StatusPending,
		Subtotal:        subtotal,
		ShippingFee:     in.ShippingFee,
		Tax:             in.Tax,
		Total:           subtotal + in.ShippingFee + in.Tax,
		Notes:           in.Notes,
		StatusHistory: []order.HistoryEntry{
			{Status: order.StatusPending, Date: now, Note: "Order created"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.CreateOrder(ctx, o); err != nil {
		// The stock is already committed; hand it back before failing.
		s.ledger.ReleaseAll(ctx, reservations)
		return nil, fmt.Errorf("failed to persist order: %w", err)
	}

	metrics.OrdersCreated.Inc()
	s.publish(ctx, o.ID, events.TypeOrderCreated, events.OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Items:       eventItems(o.Items),
		Total:       o.Total,
	})
	return o, nil
}

// Get returns one order; only the owning customer or an admin may see it.
func (s *Service) Get(ctx context.Context, id string, p Principal) (*order.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.canAccess(o) {
		return nil, ErrForbidden
	}
	return o, nil
}

// List pages orders newest-first. Admins see everything (optionally filtered
// by status); everyone else sees only their own orders.
func (s *Service) List(ctx context.Context, p Principal, in ListInput) ([]order.Order, int, error) {
	f := store.OrderFilter{Status: in.Status, Page: in.Page, Limit: in.Limit}
	if !p.Admin {
		f.CustomerID = p.UserID
	}
	return s.orders.ListOrders(ctx, f)
}

// UpdateStatus is the admin override: any non-terminal state may move to any
// state, looser than the customer lifecycle, but the history entry is still
// mandatory.
func (s *Service) UpdateStatus(ctx context.Context, id string, newStatus order.Status, note string, p Principal) (*order.Order, error) {
	if !p.Admin {
		return nil, ErrForbidden
	}
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, newStatus)
	}

	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", order.ErrTerminalStatus, o.Status)
	}

	entry := order.HistoryEntry{Status: newStatus, Date: time.Now(), Note: note}
	if err := s.orders.UpdateStatus(ctx, id, newStatus, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, id, events.TypeOrderStatusChanged, events.OrderStatusChanged{
		OrderID:   id,
		OldStatus: string(o.Status),
		NewStatus: string(newStatus),
		Note:      note,
	})
	return s.orders.GetOrder(ctx, id)
}

// UpdatePaymentStatus is the admin manual correction; it bypasses the
// reconciliation idempotency guard on purpose.
func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, newStatus order.PaymentStatus, p Principal) (*order.Order, error) {
	if !p.Admin {
		return nil, ErrForbidden
	}
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, newStatus)
	}
	if err := s.orders.SetPaymentStatus(ctx, id, newStatus); err != nil {
		return nil, err
	}
	return s.orders.GetOrder(ctx, id)
}

// Cancel moves the order to cancelled and releases its reservations. Only
// pending and confirmed orders can be cancelled; the store's conditional
// cancel decides who wins a race, and only the winner releases stock. A
// release failure on a single item (product deleted since creation) is
// logged and skipped, never rolling back the cancellation itself.
func (s *Service) Cancel(ctx context.Context, id, reason string, p Principal) (*order.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.canAccess(o) {
		return nil, ErrForbidden
	}
	if !o.CanBeCancelled() {
		return nil, fmt.Errorf("%w: current status is %s", order.ErrNotCancellable, o.Status)
	}

	entry := order.HistoryEntry{Status: order.StatusCancelled, Date: time.Now(), Note: reason}
	if err := s.orders.CancelOrder(ctx, id, reason, entry); err != nil {
		return nil, err
	}

	reservations := make([]inventory.Reservation, 0, len(o.Items))
	for _, item := range o.Items {
		reservations = append(reservations, inventory.Reservation{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	s.ledger.ReleaseAll(ctx, reservations)

	metrics.OrdersCancelled.Inc()
	s.publish(ctx, id, events.TypeOrderCancelled, events.OrderCancelled{
		OrderID:     id,
		OrderNumber: o.OrderNumber,
		Reason:      reason,
		Items:       eventItems(o.Items),
	})
	return s.orders.GetOrder(ctx, id)
}

func (s *Service) publish(ctx context.Context, key, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, key, eventType, payload); err != nil {
		log.Printf("[Orders] Failed to publish %s for %s: %v", eventType, key, err)
	}
}

func eventItems(items []order.OrderItem) []events.OrderItem {
	out := make([]events.OrderItem, 0, len(items))
	for _, it := range items {
		out = append(out, events.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
