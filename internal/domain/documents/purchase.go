package documents

import (
	"context"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/types"
	"tillsync/internal/core/validate"
)

// Purchase records goods received from a supplier.
type Purchase struct {
	entity.Base

	Items []Line `json:"items" validate:"required,min=1,dive"`

	// Total is calculated from Items
	Total types.Money `json:"total"`

	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required,oneof=cash credit transfer"`

	SupplierID   string `json:"supplierId,omitempty"`
	SupplierName string `json:"supplierName,omitempty" validate:"max=200"`

	// CreditorID selects the creditor of a credit purchase; CreditorName is the legacy fallback
	CreditorID   string `json:"creditorId,omitempty"`
	CreditorName string `json:"creditorName,omitempty" validate:"max=200"`

	// AccruedTo is the creditor whose totalDue this purchase increased
	AccruedTo string `json:"accruedTo,omitempty"`

	// InvoiceNumber is the supplier's delivery note or invoice reference
	InvoiceNumber string `json:"invoiceNumber,omitempty" validate:"max=100"`

	Date       time.Time `json:"date"`
	Note       string    `json:"note,omitempty" validate:"max=1000"`
	RecordedBy string    `json:"recordedBy,omitempty"`

	// CashEntryID links the generated cash-out entry of a cash purchase
	CashEntryID string `json:"cashEntryId,omitempty"`
}

// NewPurchase creates a purchase dated now.
func NewPurchase(now time.Time, method PaymentMethod) *Purchase {
	return &Purchase{
		Base:          entity.NewBase(now),
		PaymentMethod: method,
		Date:          now,
		Items:         make([]Line, 0),
		Total:         types.Zero(),
	}
}

// AddLine adds a line and recalculates the total. packUnit may be zero.
func (p *Purchase) AddLine(goodID, name string, qty, packUnit types.Quantity, unitPrice types.Money) {
	p.Items = append(p.Items, Line{GoodID: goodID, Name: name, Quantity: qty, PackUnit: packUnit, UnitPrice: unitPrice})
	p.RecalculateTotals()
}

// RecalculateTotals updates line amounts and the purchase total.
func (p *Purchase) RecalculateTotals() {
	p.Total = lineTotal(p.Items)
}

// Validate implements entity.Validatable.
func (p *Purchase) Validate(ctx context.Context) error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.PaymentMethod.IsCredit() && p.CreditorID == "" && p.CreditorName == "" && p.SupplierName == "" {
		return apperror.NewValidation("credit purchase needs a creditor").
			WithDetail("field", "creditorId")
	}
	if p.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}
