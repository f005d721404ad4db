package order

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order must have at least one item")
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")
	ErrNotCancellable  = errors.New("order cannot be cancelled in its current status")
	ErrTerminalStatus  = errors.New("order is in a terminal status")
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
	PaymentPOS      PaymentMethod = "pos"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCard, PaymentPOS:
		return true
	}
	return false
}

// PaymentStatus tracks the payment axis, independent of fulfillment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// OrderItem is a point-in-time snapshot of the purchased product, so
// historical orders stay intact when the product changes later.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
	Subtotal  float64 `json:"subtotal"`
}

// ShippingAddress is captured at creation time and never updated.
type ShippingAddress struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country"`
}

const DefaultCountry = "Nigeria"

// Validate checks the required address fields.
func (a *ShippingAddress) Validate() error {
	switch {
	case a.Name == "":
		return errors.New("shipping address: name is required")
	case a.Phone == "":
		return errors.New("shipping address: phone is required")
	case a.Street == "":
		return errors.New("shipping address: street is required")
	case a.City == "":
		return errors.New("shipping address: city is required")
	case a.State == "":
		return errors.New("shipping address: state is required")
	}
	return nil
}

// PaymentDetails is written exactly once, when the order is marked paid.
type PaymentDetails struct {
	Method        string    `json:"method"`
	Reference     string    `json:"reference"`
	PaidAt        time.Time `json:"paid_at"`
	Amount        float64   `json:"amount"`
	Channel       string    `json:"channel,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
}

// HistoryEntry is one record in the append-only status audit log.
type HistoryEntry struct {
	Status Status    `json:"status"`
	Date   time.Time `json:"date"`
	Note   string    `json:"note,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	CustomerID      string          `json:"customer_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Status          Status          `json:"order_status"`
	Subtotal        float64         `json:"subtotal"`
	ShippingFee     float64         `json:"shipping_fee"`
	Tax             float64         `json:"tax"`
	Total           float64         `json:"total"`
	Notes           string          `json:"notes,omitempty"`
	CancelReason    string          `json:"cancel_reason,omitempty"`
	PaymentDetails  *PaymentDetails `json:"payment_details,omitempty"`
	StatusHistory   []HistoryEntry  `json:"status_history"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewOrderNumber generates a human-readable order number: ORD + yymm + 4
// random digits. Collisions are an accepted risk at this volume.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%02d%02d%04d", now.Year()%100, int(now.Month()), rand.Intn(10000))
}

// CanBeCancelled reports whether the cancellation guard allows cancelling
// from the order's current status. Only pending and confirmed orders hold
// stock that has not yet entered fulfillment.
func (o *Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// IsPaid reports whether a payment has already been applied.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

// OwnedBy reports whether the given user is the order's customer.
func (o *Order) OwnedBy(userID string) bool {
	return o.CustomerID == userID
}
