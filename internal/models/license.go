package models

import (
	"time"

	"github.com/google/uuid"
)

// LicenseCategory classifies what kind of digital good a license unlocks.
// It is descriptive only and has no behavioral effect.
type LicenseCategory string

const (
	// LicenseCategoryAccount unlocks an account-type product.
	LicenseCategoryAccount LicenseCategory = "account"
	// LicenseCategoryGiftCard unlocks a gift-card-type product.
	LicenseCategoryGiftCard LicenseCategory = "gift-card"
	// LicenseCategoryCheat unlocks a cheat-type product.
	LicenseCategoryCheat LicenseCategory = "cheat"
)

// Valid returns true if the category is one of the known values.
func (c LicenseCategory) Valid() bool {
	switch c {
	case LicenseCategoryAccount, LicenseCategoryGiftCard, LicenseCategoryCheat:
		return true
	}
	return false
}

// License is a redeemable code scoped to one product, with a usage ceiling.
// A license is consumable iff it is active and has remaining usages.
// MaxUsages of 999 is the storefront's "effectively unlimited" convention,
// but it is a plain integer ceiling with no special-casing.
type License struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	ProductID     string          `json:"product_id"`
	Category      LicenseCategory `json:"category"`
	MaxUsages     int             `json:"max_usages"`
	CurrentUsages int             `json:"current_usages"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewLicense creates a new License with zero usages.
func NewLicense(code, productID string, category LicenseCategory, maxUsages int) *License {
	return &License{
		ID:            uuid.New(),
		Code:          code,
		ProductID:     productID,
		Category:      category,
		MaxUsages:     maxUsages,
		CurrentUsages: 0,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
}

// IsConsumable returns true if the license can satisfy one more redemption.
func (l *License) IsConsumable() bool {
	return l.IsActive && l.CurrentUsages < l.MaxUsages
}

// RemainingUsages returns how many redemptions the license has left.
func (l *License) RemainingUsages() int {
	if l.CurrentUsages >= l.MaxUsages {
		return 0
	}
	return l.MaxUsages - l.CurrentUsages
}

// IssueLicenseRequest is the request body for issuing a new license.
type IssueLicenseRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	Category  LicenseCategory `json:"category" binding:"required"`
	MaxUsages int             `json:"max_usages" binding:"required"`
}

// ValidateLicenseRequest is the request body for validating (and thereby
// redeeming) a license code against a product.
type ValidateLicenseRequest struct {
	Code      string `json:"code" binding:"required"`
	ProductID string `json:"product_id" binding:"required"`
}
