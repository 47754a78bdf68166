// Package documents holds the transaction records of the ledger: sales,
// purchases and the cash entries they generate.
package documents

import (
	"tillsync/internal/core/types"
)

// PaymentMethod says how a sale or purchase was settled.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCredit   PaymentMethod = "credit"
	PaymentTransfer PaymentMethod = "transfer" // mobile money, card, bank
)

// IsCash reports whether the transaction moves till cash immediately.
func (m PaymentMethod) IsCash() bool { return m == PaymentCash }

// IsCredit reports whether the transaction accrues on a debtor or creditor.
func (m PaymentMethod) IsCredit() bool { return m == PaymentCredit }

// Line is one item of a sale or purchase.
type Line struct {
	// GoodID is the matched good; lines recorded by name are resolved to an id when applied
	GoodID string `json:"goodId,omitempty"`

	Name string `json:"name" validate:"required,max=200"`

	Quantity  types.Quantity `json:"quantity" validate:"gt=0"`
	UnitPrice types.Money    `json:"unitPrice" validate:"gte=0"`

	// PackUnit overrides the good's pack size on purchases
	PackUnit types.Quantity `json:"packUnit,omitempty" validate:"gte=0"`

	// Amount is Quantity × UnitPrice rounded to cents
	Amount types.Money `json:"amount"`

	// Moved is the stock actually taken or received when the line was applied.
	// Reversal gives back exactly this, so a floored sale does not inflate stock.
	Moved types.Quantity `json:"moved,omitempty"`
}

func (l *Line) recalculate() {
	l.Amount = types.RoundCents(l.Quantity.Money().Mul(l.UnitPrice))
}

// lineTotal recalculates every line and returns the sum.
func lineTotal(lines []Line) types.Money {
	total := types.Zero()
	for i := range lines {
		lines[i].recalculate()
		total = total.Add(lines[i].Amount)
	}
	return types.RoundCents(total)
}
