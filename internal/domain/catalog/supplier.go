package catalog

import (
	"context"
	"strings"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/validate"
)

// Supplier delivers goods to the shop.
type Supplier struct {
	entity.Base

	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Address string `json:"address,omitempty" validate:"max=500"`

	// ContactPerson is the sales rep the shop orders through
	ContactPerson string `json:"contactPerson,omitempty" validate:"max=200"`

	Notes string `json:"notes,omitempty" validate:"max=1000"`
}

// NewSupplier creates a supplier.
func NewSupplier(now time.Time, name string) *Supplier {
	return &Supplier{
		Base: entity.NewBase(now),
		Name: strings.TrimSpace(name),
	}
}

// Validate implements entity.Validatable interface.
func (s *Supplier) Validate(ctx context.Context) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if strings.TrimSpace(s.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}
