package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/types"
	"tillsync/internal/domain/documents"
)

func TestRecordPayment_ClearsBalanceAndLock(t *testing.T) {
	f := newFixture(t)
	soap := f.good(t, "Soap", 10, "10")
	d, err := f.svc.AddDebtor(f.ctx, PartyInput{Name: "Amina"})
	require.NoError(t, err)

	_, err = f.svc.AddSale(f.ctx, SaleInput{
		Items:         []LineInput{{GoodID: soap, Quantity: qty(5)}},
		PaymentMethod: documents.PaymentCredit,
		DebtorID:      d.ID,
	})
	require.NoError(t, err)

	_, err = f.svc.SetRepaymentDueDate(f.ctx, d.ID, t0.AddDate(0, 0, 7))
	require.NoError(t, err)
	_, err = f.svc.SetRepaymentDueDate(f.ctx, d.ID, t0.AddDate(0, 0, 30))
	assert.True(t, apperror.HasCode(err, apperror.CodeRepaymentLocked))

	got, err := f.svc.RecordPayment(f.ctx, d.ID, PaymentInput{Amount: money("20"), Note: "first"})
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(money("30")))
	assert.True(t, got.RepaymentLocked, "lock holds while money is owed")

	got, err = f.svc.RecordPayment(f.ctx, d.ID, PaymentInput{Amount: money("30")})
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	assert.True(t, got.TotalPaid.Equal(money("50")))
	assert.False(t, got.RepaymentLocked)
	assert.Nil(t, got.RepaymentDueDate)
	require.Len(t, got.Deposits, 2)
	assert.Equal(t, "Grace", got.Deposits[0].RecordedBy)

	cash := f.cashEntries(t)
	require.Len(t, cash, 2)
	for _, c := range cash {
		assert.Equal(t, "in", c.Type)
		assert.Equal(t, string(documents.SourceDebtorPayment), c.Source)
		assert.Equal(t, d.ID, c.SourceID)
	}
	ids := []string{cash[0].ID, cash[1].ID}
	assert.Contains(t, ids, got.Deposits[0].CashEntryID)
	assert.Contains(t, ids, got.Deposits[1].CashEntryID)

	_, err = f.svc.SetRepaymentDueDate(f.ctx, d.ID, t0.AddDate(0, 0, 30))
	assert.NoError(t, err, "a settled debtor may agree a new date")
}

func TestRecordPayment_Rejections(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.AddDebtor(f.ctx, PartyInput{Name: "Amina"})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(f.ctx, d.ID, PaymentInput{Amount: money("5")})
	assert.True(t, apperror.IsValidation(err), "nothing is owed")

	_, err = f.svc.RecordPayment(f.ctx, d.ID, PaymentInput{Amount: money("-1")})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.RecordPayment(f.ctx, "missing", PaymentInput{Amount: money("1")})
	assert.True(t, apperror.IsNotFound(err))

	assert.Empty(t, f.cashEntries(t))
}

func TestRecordCreditorPayment_CashOut(t *testing.T) {
	f := newFixture(t)
	flour := f.good(t, "Flour", 0, "3")
	c, err := f.svc.AddCreditor(f.ctx, PartyInput{Name: "Mill Co"})
	require.NoError(t, err)
	_, err = f.svc.AddPurchase(f.ctx, PurchaseInput{
		Items:         []LineInput{{GoodID: flour, Quantity: qty(4), UnitPrice: price("2.50")}},
		PaymentMethod: documents.PaymentCredit,
		CreditorID:    c.ID,
	})
	require.NoError(t, err)

	paidOn := t0.Add(-2 * time.Hour)
	got, err := f.svc.RecordCreditorPayment(f.ctx, c.ID, PaymentInput{Amount: money("4"), Date: &paidOn})
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(money("6")))
	assert.True(t, got.Balance.Equal(types.RoundCents(got.TotalDue.Sub(got.TotalPaid))))

	cash := f.cashEntries(t)
	require.Len(t, cash, 1)
	assert.Equal(t, "out", cash[0].Type)
	assert.True(t, paidOn.Equal(cash[0].Date))

	history, err := f.audit.History(f.ctx, entity.Creditors, c.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, entity.AuditPayment, history[len(history)-1].Action)
}
