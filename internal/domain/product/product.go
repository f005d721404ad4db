package product

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// OutOfStockError reports a reservation that exceeded the available stock,
// naming the product and how many units are left.
type OutOfStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s. Available: %d", name, e.Available)
}

// Image is one catalog image; the primary one is snapshotted onto order items.
type Image struct {
	URL       string `json:"url"`
	Alt       string `json:"alt,omitempty"`
	IsPrimary bool   `json:"is_primary"`
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	SKU         string    `json:"sku,omitempty"`
	Brand       string    `json:"brand,omitempty"`
	Images      []Image   `json:"images,omitempty"`
	Stock       int       `json:"stock"`
	Sales       int       `json:"sales"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PrimaryImage returns the primary image URL, or the first image, or "".
func (p *Product) PrimaryImage() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}
