package catalog

import (
	"context"
	"strings"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/id"
	"tillsync/internal/core/types"
	"tillsync/internal/core/validate"
)

// Deposit is one immutable repayment appended to a party.
type Deposit struct {
	ID          string      `json:"id"`
	Amount      types.Money `json:"amount"`
	Date        time.Time   `json:"date"`
	Note        string      `json:"note,omitempty"`
	RecordedBy  string      `json:"recordedBy,omitempty"`
	CashEntryID string      `json:"cashEntryId,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Party is the balance-carrying part shared by debtors and creditors.
//
// Invariant: Balance == RoundCents(TotalDue - TotalPaid) after every mutation.
type Party struct {
	entity.Base

	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty" validate:"max=500"`
	Notes   string `json:"notes,omitempty" validate:"max=1000"`

	TotalDue  types.Money `json:"totalDue"`
	TotalPaid types.Money `json:"totalPaid"`
	Balance   types.Money `json:"balance"`

	// Deposits are appended, never edited
	Deposits []Deposit `json:"deposits"`

	// RepaymentDueDate is the agreed settlement date of the current credit arrangement
	RepaymentDueDate *time.Time `json:"repaymentDueDate,omitempty"`

	// RepaymentLocked stops the due date from being moved until the balance is cleared
	RepaymentLocked bool `json:"repaymentLocked,omitempty"`
}

func newParty(now time.Time, name string) Party {
	return Party{
		Base:      entity.NewBase(now),
		Name:      strings.TrimSpace(name),
		TotalDue:  types.Zero(),
		TotalPaid: types.Zero(),
		Balance:   types.Zero(),
		Deposits:  []Deposit{},
	}
}

// Validate implements entity.Validatable interface.
func (p *Party) Validate(ctx context.Context) error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}

// Recompute restores the balance identity.
func (p *Party) Recompute() {
	p.Balance = types.RoundCents(p.TotalDue.Sub(p.TotalPaid))
}

// Accrue adds a credit transaction to the amount due. A negative amount
// reverses one.
func (p *Party) Accrue(amount types.Money) {
	p.TotalDue = p.TotalDue.Add(amount)
	p.Recompute()
}

// Settled reports a zero balance.
func (p *Party) Settled() bool {
	return p.Balance.IsZero()
}

// Pay appends a deposit. The amount must be positive and must not exceed
// the balance. Clearing the balance releases the repayment lock.
func (p *Party) Pay(now time.Time, amount types.Money, date time.Time, note, by, cashEntryID string) (Deposit, error) {
	amount = types.RoundCents(amount)
	if !amount.IsPositive() {
		return Deposit{}, apperror.NewValidation("payment amount must be positive").
			WithDetail("field", "amount")
	}
	if amount.GreaterThan(p.Balance) {
		return Deposit{}, apperror.NewValidation("payment exceeds outstanding balance").
			WithDetail("field", "amount").
			WithDetail("balance", p.Balance.StringFixed(2))
	}

	dep := Deposit{
		ID:          id.New(),
		Amount:      amount,
		Date:        date,
		Note:        note,
		RecordedBy:  by,
		CashEntryID: cashEntryID,
		CreatedAt:   now,
	}
	p.Deposits = append(p.Deposits, dep)
	p.TotalPaid = p.TotalPaid.Add(amount)
	p.Recompute()

	if p.Settled() {
		p.RepaymentDueDate = nil
		p.RepaymentLocked = false
	}
	return dep, nil
}

// SetRepaymentDueDate agrees a settlement date and locks it. A locked date
// cannot be moved while money is still owed.
func (p *Party) SetRepaymentDueDate(due time.Time) error {
	if p.RepaymentLocked && !p.Settled() {
		return apperror.NewBusinessRule(apperror.CodeRepaymentLocked,
			"repayment date is locked until the balance is cleared").
			WithDetail("balance", p.Balance.StringFixed(2))
	}
	p.RepaymentDueDate = &due
	p.RepaymentLocked = true
	return nil
}

// EnsureDeletable returns BALANCE_OUTSTANDING while money is owed either way.
func (p *Party) EnsureDeletable(kind string) error {
	if p.Settled() {
		return nil
	}
	return apperror.NewBusinessRule(apperror.CodeBalanceOutstanding,
		kind+" has an outstanding balance").
		WithDetail("id", p.ID).
		WithDetail("balance", p.Balance.StringFixed(2))
}

// PartyRef exposes the shared party fields of a debtor or creditor.
func (p *Party) PartyRef() *Party { return p }

// Debtor is a customer buying on credit.
type Debtor struct {
	Party
}

// NewDebtor creates a debtor with a zero balance.
func NewDebtor(now time.Time, name string) *Debtor {
	return &Debtor{Party: newParty(now, name)}
}

// Creditor is someone the shop owes, usually a supplier delivering on credit.
type Creditor struct {
	Party

	// SupplierID links the creditor to a supplier record when known
	SupplierID string `json:"supplierId,omitempty"`
}

// NewCreditor creates a creditor with a zero balance.
func NewCreditor(now time.Time, name string) *Creditor {
	return &Creditor{Party: newParty(now, name)}
}

// SettledDocument decodes a debtor or creditor document and reports a zero balance.
// Used as the guard against remote deletions of records that still carry money.
func SettledDocument(d entity.Document) bool {
	p, err := entity.Decode[Party](d)
	if err != nil {
		return false
	}
	return p.Settled()
}
