package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/domain/documents"
)

func TestAddPurchase_StockGrowsByPackUnit(t *testing.T) {
	f := newFixture(t)

	soda, err := f.svc.AddGood(f.ctx, GoodInput{Name: "Soda", PackUnit: qty(24), CostPrice: money("0.40"), SellingPrice: money("1")})
	require.NoError(t, err)
	loose := f.good(t, "Candles", 0, "0.10")

	tests := []struct {
		name string
		line LineInput
		good string
		want int64
	}{
		{"good pack unit", LineInput{GoodID: soda.ID, Quantity: qty(2), UnitPrice: price("9.60")}, soda.ID, 48},
		{"line pack unit wins", LineInput{GoodID: soda.ID, Quantity: qty(1), PackUnit: qty(12), UnitPrice: price("4.80")}, soda.ID, 60},
		{"no pack unit", LineInput{GoodID: loose, Quantity: qty(7), UnitPrice: price("0.05")}, loose, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddPurchase(f.ctx, PurchaseInput{
				Items:         []LineInput{tt.line},
				PaymentMethod: documents.PaymentTransfer,
			})
			require.NoError(t, err)
			assert.Equal(t, qty(tt.want), f.stock(t, tt.good))
		})
	}
}

func TestAddPurchase_CashCreatesCashOut(t *testing.T) {
	f := newFixture(t)
	flour := f.good(t, "Flour", 0, "3")

	p, err := f.svc.AddPurchase(f.ctx, PurchaseInput{
		Items:         []LineInput{{GoodID: flour, Quantity: qty(10), UnitPrice: price("2.10")}},
		PaymentMethod: documents.PaymentCash,
		SupplierName:  "Mill Co",
	})
	require.NoError(t, err)
	assert.True(t, p.Total.Equal(money("21")))

	cash := f.cashEntries(t)
	require.Len(t, cash, 1)
	assert.Equal(t, "out", cash[0].Type)
	assert.Equal(t, "21.00", cash[0].Amount)
	assert.Equal(t, p.ID, cash[0].SourceID)
}

func TestAddPurchase_CreditAccruesOnCreditorBySupplierName(t *testing.T) {
	f := newFixture(t)
	flour := f.good(t, "Flour", 0, "3")
	c, err := f.svc.AddCreditor(f.ctx, PartyInput{Name: "Mill Co"})
	require.NoError(t, err)

	p, err := f.svc.AddPurchase(f.ctx, PurchaseInput{
		Items:         []LineInput{{GoodID: flour, Quantity: qty(5), UnitPrice: price("2")}},
		PaymentMethod: documents.PaymentCredit,
		SupplierName:  "MILL CO",
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, p.AccruedTo)

	got, err := f.svc.GetCreditor(f.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalDue.Equal(money("10")))
	assert.True(t, got.Balance.Equal(money("10")))
	assert.Empty(t, f.cashEntries(t))
}

func TestDeletePurchase_ReversesEffects(t *testing.T) {
	f := newFixture(t)
	flour := f.good(t, "Flour", 2, "3")
	c, err := f.svc.AddCreditor(f.ctx, PartyInput{Name: "Mill Co"})
	require.NoError(t, err)

	p, err := f.svc.AddPurchase(f.ctx, PurchaseInput{
		Items:         []LineInput{{GoodID: flour, Quantity: qty(5), UnitPrice: price("2")}},
		PaymentMethod: documents.PaymentCredit,
		CreditorID:    c.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, qty(7), f.stock(t, flour))

	require.NoError(t, f.svc.DeletePurchase(f.ctx, p.ID))
	assert.Equal(t, qty(2), f.stock(t, flour))

	got, err := f.svc.GetCreditor(f.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
}

func TestUpdatePurchase_SwitchesToCash(t *testing.T) {
	f := newFixture(t)
	flour := f.good(t, "Flour", 0, "3")
	c, err := f.svc.AddCreditor(f.ctx, PartyInput{Name: "Mill Co"})
	require.NoError(t, err)

	p, err := f.svc.AddPurchase(f.ctx, PurchaseInput{
		Items:         []LineInput{{GoodID: flour, Quantity: qty(5), UnitPrice: price("2")}},
		PaymentMethod: documents.PaymentCredit,
		CreditorID:    c.ID,
	})
	require.NoError(t, err)

	cashMethod := documents.PaymentCash
	updated, err := f.svc.UpdatePurchase(f.ctx, p.ID, PurchasePatch{PaymentMethod: &cashMethod})
	require.NoError(t, err)
	assert.Empty(t, updated.AccruedTo)
	assert.NotEmpty(t, updated.CashEntryID)
	assert.Equal(t, qty(5), f.stock(t, flour))

	got, err := f.svc.GetCreditor(f.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalDue.IsZero())

	cash := f.cashEntries(t)
	require.Len(t, cash, 1)
	assert.Equal(t, "out", cash[0].Type)
}
