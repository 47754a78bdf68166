package documents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/types"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestSale_Totals(t *testing.T) {
	s := NewSale(t0, PaymentCash)
	s.AddLine("", "Bread", types.NewQuantity(2), types.MustMoney("1.25"))
	s.AddLine("", "Cheese", types.NewQuantityFromFloat64(0.5), types.MustMoney("9.99"))

	assert.True(t, s.Items[0].Amount.Equal(types.MustMoney("2.5")))
	assert.True(t, s.Items[1].Amount.Equal(types.MustMoney("5")))
	assert.True(t, s.Total.Equal(types.MustMoney("7.5")))
	assert.NoError(t, s.Validate(context.Background()))
}

func TestSale_Validate(t *testing.T) {
	ctx := context.Background()

	s := NewSale(t0, PaymentCash)
	assert.True(t, apperror.IsValidation(s.Validate(ctx)), "no items")

	s.AddLine("", "Bread", 0, types.MustMoney("1"))
	assert.True(t, apperror.IsValidation(s.Validate(ctx)), "zero quantity")

	s = NewSale(t0, PaymentCredit)
	s.AddLine("", "Bread", types.NewQuantity(1), types.MustMoney("1"))
	assert.True(t, apperror.IsValidation(s.Validate(ctx)), "credit without debtor")

	s.DebtorName = "Amina"
	assert.NoError(t, s.Validate(ctx))

	s.PaymentMethod = "barter"
	assert.True(t, apperror.IsValidation(s.Validate(ctx)))
}

func TestPurchase_Validate(t *testing.T) {
	p := NewPurchase(t0, PaymentCredit)
	p.AddLine("", "Soda crate", types.NewQuantity(2), types.NewQuantity(24), types.MustMoney("12"))
	assert.True(t, p.Total.Equal(types.MustMoney("24")))
	assert.True(t, apperror.IsValidation(p.Validate(context.Background())))

	p.SupplierName = "Wholesaler"
	assert.NoError(t, p.Validate(context.Background()))
}

func TestCashEntry(t *testing.T) {
	in := NewCashEntry(t0, CashIn, types.MustMoney("50"), t0)
	out := NewCashEntry(t0, CashOut, types.MustMoney("20"), t0)

	assert.True(t, in.Signed().Equal(types.MustMoney("50")))
	assert.True(t, out.Signed().Equal(types.MustMoney("-20")))
	assert.False(t, in.Linked())
	assert.NoError(t, in.Validate(context.Background()))

	out.Source = SourcePurchase
	assert.True(t, out.Linked())

	bad := NewCashEntry(t0, CashIn, types.Zero(), t0)
	assert.True(t, apperror.IsValidation(bad.Validate(context.Background())))
}
