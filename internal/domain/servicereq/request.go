package servicereq

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var ErrRequestNotFound = errors.New("service request not found")

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type ServiceType string

const (
	TypeInstallation ServiceType = "installation"
	TypeRepair       ServiceType = "repair"
	TypeMaintenance  ServiceType = "maintenance"
	TypeConsultation ServiceType = "consultation"
)

func (t ServiceType) Valid() bool {
	switch t {
	case TypeInstallation, TypeRepair, TypeMaintenance, TypeConsultation:
		return true
	}
	return false
}

type Category string

const (
	CategoryElectrical Category = "electrical"
	CategorySolar      Category = "solar"
	CategoryAppliance  Category = "appliance"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryElectrical, CategorySolar, CategoryAppliance:
		return true
	}
	return false
}

// Customer holds the contact details supplied with a request. Requests can be
// filed without an account, so this is not a user reference.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (c *Customer) Validate() error {
	if c.Name == "" || c.Email == "" || c.Phone == "" || c.Address == "" {
		return errors.New("customer name, email, phone and address are required")
	}
	return nil
}

type Request struct {
	ID            string      `json:"id"`
	RequestNumber string      `json:"request_number"`
	Customer      Customer    `json:"customer"`
	UserID        string      `json:"user_id,omitempty"`
	ServiceType   ServiceType `json:"service_type"`
	Category      Category    `json:"category"`
	Description   string      `json:"description"`
	PreferredDate *time.Time  `json:"preferred_date,omitempty"`
	Status        Status      `json:"status"`
	AssignedTo    string      `json:"assigned_to,omitempty"`
	EstimatedCost float64     `json:"estimated_cost,omitempty"`
	ActualCost    float64     `json:"actual_cost,omitempty"`
	AdminNotes    string      `json:"admin_notes,omitempty"`
	CompletedDate *time.Time  `json:"completed_date,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// NewRequestNumber generates SRV + yymm + 4 random digits. Same scheme as
// order numbers; collisions are an accepted risk at this volume.
func NewRequestNumber(now time.Time) string {
	return fmt.Sprintf("SRV%02d%02d%04d", now.Year()%100, int(now.Month()), rand.Intn(10000))
}
