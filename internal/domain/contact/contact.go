package contact

import (
	"errors"
	"time"
)

var ErrMessageNotFound = errors.New("contact message not found")

type Status string

const (
	StatusNew      Status = "new"
	StatusRead     Status = "read"
	StatusReplied  Status = "replied"
	StatusResolved Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusRead, StatusReplied, StatusResolved:
		return true
	}
	return false
}

// Message is a customer enquiry submitted through the public contact form.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"message"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to accept a message.
func (m *Message) Validate() error {
	switch {
	case m.Name == "":
		return errors.New("name is required")
	case m.Email == "":
		return errors.New("email is required")
	case m.Subject == "":
		return errors.New("subject is required")
	case m.Body == "":
		return errors.New("message is required")
	}
	return nil
}
