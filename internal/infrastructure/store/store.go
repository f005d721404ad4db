package store

import (
	"context"

	"github.com/example/ec-backend/internal/domain/contact"
	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/domain/product"
	"github.com/example/ec-backend/internal/domain/servicereq"
	"github.com/example/ec-backend/internal/domain/user"
)

// ProductStore is the authoritative home of stock and sales counters.
// ReserveStock and ReleaseStock must be atomic conditional updates at the
// storage layer; callers never do read-then-write stock arithmetic.
type ProductStore interface {
	CreateProduct(ctx context.Context, p *product.Product) error
	GetProduct(ctx context.Context, id string) (*product.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]product.Product, error)

	// ReserveStock decrements stock and increments sales by qty, only if
	// stock >= qty. Returns product.ErrProductNotFound or
	// *product.OutOfStockError otherwise.
	ReserveStock(ctx context.Context, id string, qty int) error

	// ReleaseStock increments stock by qty and decrements sales by qty,
	// clamping sales at zero.
	ReleaseStock(ctx context.Context, id string, qty int) error

	// SetStock overwrites the stock counter (admin restock).
	SetStock(ctx context.Context, id string, stock int) error
}

// OrderFilter narrows and pages order listings.
type OrderFilter struct {
	CustomerID string // empty: all customers (admin)
	Status     order.Status
	Page       int
	Limit      int
}

// OrderStore persists orders. Orders are permanent audit records and are
// never deleted.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, id string) (*order.Order, error)

	// ListOrders returns one page, newest first, plus the unpaged total.
	ListOrders(ctx context.Context, f OrderFilter) ([]order.Order, int, error)

	// UpdateStatus sets the fulfillment status and appends one history
	// entry in the same write.
	UpdateStatus(ctx context.Context, id string, status order.Status, entry order.HistoryEntry) error

	// CancelOrder sets status=cancelled, records the reason and appends the
	// history entry, only while the order is still pending or confirmed.
	// Check-and-set is a single conditional write; the loser of a race (or a
	// cancel against a shipped order) gets order.ErrNotCancellable.
	CancelOrder(ctx context.Context, id, reason string, entry order.HistoryEntry) error

	// SetPaymentStatus overwrites the payment status with no idempotency
	// guard (admin manual correction).
	SetPaymentStatus(ctx context.Context, id string, status order.PaymentStatus) error

	// MarkPaid sets payment_status=paid and writes the details, only if the
	// order is not already paid. Returns applied=false on the idempotent
	// short-circuit. Check-and-set is a single conditional write.
	MarkPaid(ctx context.Context, id string, details order.PaymentDetails) (applied bool, err error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) error // user.ErrEmailTaken on duplicate
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

type ContactStore interface {
	CreateMessage(ctx context.Context, m *contact.Message) error
	ListMessages(ctx context.Context, status contact.Status, page, limit int) ([]contact.Message, int, error)
	UpdateMessageStatus(ctx context.Context, id string, status contact.Status) (*contact.Message, error)
}

// ServiceRequestFilter narrows and pages service-request listings.
type ServiceRequestFilter struct {
	Status      servicereq.Status
	ServiceType servicereq.ServiceType
	Category    servicereq.Category
	Page        int
	Limit       int
}

type ServiceRequestStore interface {
	CreateRequest(ctx context.Context, r *servicereq.Request) error
	GetRequest(ctx context.Context, id string) (*servicereq.Request, error)
	ListRequests(ctx context.Context, f ServiceRequestFilter) ([]servicereq.Request, int, error)
	// ListRequestsForUser matches by user id or by the email captured on the
	// request, so pre-registration requests still show up.
	ListRequestsForUser(ctx context.Context, userID, email string) ([]servicereq.Request, error)
	UpdateRequest(ctx context.Context, r *servicereq.Request) error
}

// Store bundles every collection behind one handle.
type Store interface {
	ProductStore
	OrderStore
	UserStore
	ContactStore
	ServiceRequestStore
}

// Composite assembles a Store from independently backed collections, e.g.
// products and orders on DynamoDB with everything else on Postgres.
type Composite struct {
	ProductStore
	OrderStore
	UserStore
	ContactStore
	ServiceRequestStore
}
