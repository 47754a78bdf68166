package documents

import (
	"context"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/types"
	"tillsync/internal/core/validate"
)

// Sale records goods leaving the shop.
type Sale struct {
	entity.Base

	Items []Line `json:"items" validate:"required,min=1,dive"`

	// Total is calculated from Items
	Total types.Money `json:"total"`

	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required,oneof=cash credit transfer"`

	// DebtorID selects the debtor of a credit sale; DebtorName is the legacy fallback
	DebtorID   string `json:"debtorId,omitempty"`
	DebtorName string `json:"debtorName,omitempty" validate:"max=200"`

	// AccruedTo is the debtor whose totalDue this sale increased, empty when none matched
	AccruedTo string `json:"accruedTo,omitempty"`

	// Date is the transaction date; it may be backdated, CreatedAt never is
	Date time.Time `json:"date"`

	Note       string `json:"note,omitempty" validate:"max=1000"`
	RecordedBy string `json:"recordedBy,omitempty"`

	// CashEntryID links the generated cash-in entry of a cash sale
	CashEntryID string `json:"cashEntryId,omitempty"`
}

// NewSale creates a sale dated now.
func NewSale(now time.Time, method PaymentMethod) *Sale {
	return &Sale{
		Base:          entity.NewBase(now),
		PaymentMethod: method,
		Date:          now,
		Items:         make([]Line, 0),
		Total:         types.Zero(),
	}
}

// AddLine adds a line and recalculates the total.
func (s *Sale) AddLine(goodID, name string, qty types.Quantity, unitPrice types.Money) {
	s.Items = append(s.Items, Line{GoodID: goodID, Name: name, Quantity: qty, UnitPrice: unitPrice})
	s.RecalculateTotals()
}

// RecalculateTotals updates line amounts and the sale total.
func (s *Sale) RecalculateTotals() {
	s.Total = lineTotal(s.Items)
}

// Validate implements entity.Validatable.
func (s *Sale) Validate(ctx context.Context) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if s.PaymentMethod.IsCredit() && s.DebtorID == "" && s.DebtorName == "" {
		return apperror.NewValidation("credit sale needs a debtor").
			WithDetail("field", "debtorId")
	}
	if s.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}
