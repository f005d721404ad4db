package order

// Status is the fulfillment axis of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed. Shipped
// orders can still move to delivered; delivered and cancelled are final.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// validTransitions is the customer-facing lifecycle. Admin status overrides
// are deliberately looser (any non-terminal state to any state) and are
// guarded at the service layer, not here.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransitionTo checks the strict lifecycle graph.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range validTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}
