// Package catalog holds the reference records of the shop: goods on the
// shelf, debtors who buy on credit, creditors the shop owes and suppliers.
package catalog

import (
	"context"
	"strings"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/types"
	"tillsync/internal/core/validate"
)

// Good is a stocked product.
type Good struct {
	entity.Base

	// Name is the shelf name; sales recorded without an id match on it
	Name string `json:"name" validate:"required,max=200"`

	// Barcode is the scanned code (EAN-13, UPC...)
	Barcode string `json:"barcode,omitempty" validate:"max=64"`

	Category string `json:"category,omitempty" validate:"max=100"`

	// Unit is the selling unit ("pcs", "kg")
	Unit string `json:"unit,omitempty" validate:"max=20"`

	CostPrice    types.Money `json:"costPrice" validate:"gte=0"`
	SellingPrice types.Money `json:"sellingPrice" validate:"gte=0"`

	// StockQuantity is never negative; sales floor it at zero
	StockQuantity types.Quantity `json:"stockQuantity" validate:"gte=0"`

	// PackUnit is the number of selling units in one purchased pack
	PackUnit types.Quantity `json:"packUnit,omitempty" validate:"gte=0"`

	// ReorderLevel flags the good as low on stock at or below this quantity
	ReorderLevel types.Quantity `json:"reorderLevel,omitempty" validate:"gte=0"`
}

// NewGood creates a good with an empty stock.
func NewGood(now time.Time, name string) *Good {
	return &Good{
		Base:         entity.NewBase(now),
		Name:         strings.TrimSpace(name),
		CostPrice:    types.Zero(),
		SellingPrice: types.Zero(),
	}
}

// Validate implements entity.Validatable interface.
func (g *Good) Validate(ctx context.Context) error {
	if err := validate.Struct(g); err != nil {
		return err
	}
	if strings.TrimSpace(g.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}

// UnitsPerPack returns the pack size, 1 when none is set.
func (g *Good) UnitsPerPack() types.Quantity {
	if g.PackUnit.IsPositive() {
		return g.PackUnit
	}
	return types.NewQuantity(1)
}

// LowStock reports whether the stock is at or below the reorder level.
func (g *Good) LowStock() bool {
	return g.ReorderLevel.IsPositive() && g.StockQuantity <= g.ReorderLevel
}

// Deduct removes q from stock, flooring at zero, and returns how much was
// actually taken.
func (g *Good) Deduct(q types.Quantity) types.Quantity {
	before := g.StockQuantity
	g.StockQuantity = before.SubFloor(q)
	return before - g.StockQuantity
}

// Receive adds q to stock.
func (g *Good) Receive(q types.Quantity) {
	g.StockQuantity += q
}

// SameName compares shelf names case-insensitively, ignoring outer spaces.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
