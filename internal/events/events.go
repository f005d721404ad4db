package events

import (
	"encoding/json"
	"time"
)

// Topic carries every integration event this service emits.
const Topic = "shop-events"

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderCancelled     = "order.cancelled"
	TypePaymentConfirmed   = "payment.confirmed"
)

// Envelope wraps every payload so consumers can dispatch on Type without
// knowing the concrete shape up front.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Wrap builds an envelope around a payload.
func Wrap(eventType string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Type: eventType, OccurredAt: time.Now(), Data: data}, nil
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderCreated struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	CustomerID  string      `json:"customer_id"`
	Items       []OrderItem `json:"items"`
	Total       float64     `json:"total"`
}

type OrderStatusChanged struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Note      string `json:"note,omitempty"`
}

type OrderCancelled struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	Reason      string      `json:"reason"`
	Items       []OrderItem `json:"items"`
}

type PaymentConfirmed struct {
	OrderID   string  `json:"order_id"`
	Method    string  `json:"method"`
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
}
