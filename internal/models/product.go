package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a listed digital good. ObjectKey points at the downloadable
// artifact in object storage, if the product ships one.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PriceCents  int64     `json:"price_cents"`
	ObjectKey   string    `json:"object_key,omitempty"`
	IsListed    bool      `json:"is_listed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProduct creates a listed Product.
func NewProduct(name, description, category string, priceCents int64) *Product {
	now := time.Now()
	return &Product{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Category:    category,
		PriceCents:  priceCents,
		IsListed:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// WithObjectKey sets the artifact object key.
func (p *Product) WithObjectKey(key string) *Product {
	p.ObjectKey = key
	return p
}

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category" binding:"required"`
	PriceCents  int64  `json:"price_cents"`
	ObjectKey   string `json:"object_key"`
}

// UpdateProductRequest is the request body for updating a product.
// Nil fields are left unchanged.
type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	PriceCents  *int64  `json:"price_cents"`
	ObjectKey   *string `json:"object_key"`
	IsListed    *bool   `json:"is_listed"`
}
