package documents

import (
	"context"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/types"
	"tillsync/internal/core/validate"
)

// CashDirection is the way money moves through the till.
type CashDirection string

const (
	CashIn  CashDirection = "in"
	CashOut CashDirection = "out"
)

// CashSource names what generated a cash entry.
type CashSource string

const (
	SourceManual          CashSource = "manual"
	SourceSale            CashSource = "sale"
	SourcePurchase        CashSource = "purchase"
	SourceDebtorPayment   CashSource = "debtor_payment"
	SourceCreditorPayment CashSource = "creditor_payment"
)

// CashEntry is one movement of till cash. The cash day sums them.
type CashEntry struct {
	entity.Base

	Type   CashDirection `json:"type" validate:"required,oneof=in out"`
	Amount types.Money   `json:"amount" validate:"gt=0"`

	Description string `json:"description,omitempty" validate:"max=500"`
	Category    string `json:"category,omitempty" validate:"max=100"`

	// Date is when the cash moved; expected cash is computed over it
	Date time.Time `json:"date"`

	// Source and SourceID link a generated entry to its sale, purchase or party
	Source   CashSource `json:"source"`
	SourceID string     `json:"sourceId,omitempty"`

	RecordedBy string `json:"recordedBy,omitempty"`
}

// NewCashEntry creates an entry dated date.
func NewCashEntry(now time.Time, dir CashDirection, amount types.Money, date time.Time) *CashEntry {
	return &CashEntry{
		Base:   entity.NewBase(now),
		Type:   dir,
		Amount: types.RoundCents(amount),
		Date:   date,
		Source: SourceManual,
	}
}

// Linked reports whether the entry was generated by another record and
// must change with it.
func (c *CashEntry) Linked() bool {
	return c.Source != "" && c.Source != SourceManual
}

// Signed returns the amount as a till movement: positive in, negative out.
func (c *CashEntry) Signed() types.Money {
	if c.Type == CashOut {
		return c.Amount.Neg()
	}
	return c.Amount
}

// Validate implements entity.Validatable.
func (c *CashEntry) Validate(ctx context.Context) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}
