package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/ec-backend/internal/domain/contact"
	"github.com/example/ec-backend/internal/domain/order"
	"github.com/example/ec-backend/internal/domain/product"
	"github.com/example/ec-backend/internal/domain/servicereq"
	"github.com/example/ec-backend/internal/domain/user"
)

// MemoryStore is a mutex-guarded Store used by tests and by the "memory"
// backend for local development. The mutex serializes the conditional
// updates, giving the same linearizable reserve/mark-paid semantics as the
// database backends.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]*product.Product
	orders   map[string]*order.Order
	users    map[string]*user.User
	messages map[string]*contact.Message
	requests map[string]*servicereq.Request
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*product.Product),
		orders:   make(map[string]*order.Order),
		users:    make(map[string]*user.User),
		messages: make(map[string]*contact.Message),
		requests: make(map[string]*servicereq.Request),
	}
}

// Product store

func (s *MemoryStore) CreateProduct(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProducts(_ context.Context, activeOnly bool) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []product.Product
	for _, p := range s.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ReserveStock(_ context.Context, id string, qty int) error {
	if qty <= 0 {
		return product.ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return product.ErrProductNotFound
	}
	if p.Stock < qty {
		return &product.OutOfStockError{ProductID: id, Name: p.Name, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	p.Sales += qty
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ReleaseStock(_ context.Context, id string, qty int) error {
	if qty <= 0 {
		return product.ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return product.ErrProductNotFound
	}
	p.Stock += qty
	p.Sales -= qty
	if p.Sales < 0 {
		p.Sales = 0
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetStock(_ context.Context, id string, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return product.ErrProductNotFound
	}
	p.Stock = stock
	p.UpdatedAt = time.Now()
	return nil
}

// Order store

func (s *MemoryStore) CreateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneOrder(o)
	s.orders[o.ID] = cp
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) ListOrders(_ context.Context, f OrderFilter) ([]order.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []order.Order
	for _, o := range s.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		matched = append(matched, *cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	_, limit, offset := normalizePage(f.Page, f.Limit)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status order.Status, entry order.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	o.StatusHistory = append(o.StatusHistory, entry)
	o.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CancelOrder(_ context.Context, id, reason string, entry order.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	if !o.CanBeCancelled() {
		return order.ErrNotCancellable
	}
	o.Status = order.StatusCancelled
	o.CancelReason = reason
	o.StatusHistory = append(o.StatusHistory, entry)
	o.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetPaymentStatus(_ context.Context, id string, status order.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.PaymentStatus = status
	o.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) MarkPaid(_ context.Context, id string, details order.PaymentDetails) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.PaymentStatus == order.PaymentPaid {
		return false, nil
	}
	o.PaymentStatus = order.PaymentPaid
	o.PaymentDetails = &details
	o.UpdatedAt = time.Now()
	return true, nil
}

// User store

func (s *MemoryStore) CreateUser(_ context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.ErrEmailTaken
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrUserNotFound
}

// Contact store

func (s *MemoryStore) CreateMessage(_ context.Context, m *contact.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, status contact.Status, page, limit int) ([]contact.Message, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []contact.Message
	for _, m := range s.messages {
		if status != "" && m.Status != status {
			continue
		}
		matched = append(matched, *m)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	_, limit, offset := normalizePage(page, limit)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) UpdateMessageStatus(_ context.Context, id string, status contact.Status) (*contact.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, contact.ErrMessageNotFound
	}
	m.Status = status
	m.UpdatedAt = time.Now()
	cp := *m
	return &cp, nil
}

// Service request store

func (s *MemoryStore) CreateRequest(_ context.Context, r *servicereq.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (*servicereq.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, servicereq.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListRequests(_ context.Context, f ServiceRequestFilter) ([]servicereq.Request, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []servicereq.Request
	for _, r := range s.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.ServiceType != "" && r.ServiceType != f.ServiceType {
			continue
		}
		if f.Category != "" && r.Category != f.Category {
			continue
		}
		matched = append(matched, *r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	_, limit, offset := normalizePage(f.Page, f.Limit)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) ListRequestsForUser(_ context.Context, userID, email string) ([]servicereq.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []servicereq.Request
	for _, r := range s.requests {
		if r.UserID == userID || strings.EqualFold(r.Customer.Email, email) {
			matched = append(matched, *r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return matched, nil
}

func (s *MemoryStore) UpdateRequest(_ context.Context, r *servicereq.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.requests[r.ID]
	if !ok {
		return servicereq.ErrRequestNotFound
	}
	existing.Status = r.Status
	existing.AssignedTo = r.AssignedTo
	existing.EstimatedCost = r.EstimatedCost
	existing.ActualCost = r.ActualCost
	existing.AdminNotes = r.AdminNotes
	existing.CompletedDate = r.CompletedDate
	existing.UpdatedAt = time.Now()
	return nil
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.OrderItem(nil), o.Items...)
	cp.StatusHistory = append([]order.HistoryEntry(nil), o.StatusHistory...)
	if o.PaymentDetails != nil {
		d := *o.PaymentDetails
		cp.PaymentDetails = &d
	}
	return &cp
}
