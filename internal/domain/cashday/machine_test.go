package cashday

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/clock"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/security"
	"tillsync/internal/core/types"
	"tillsync/internal/domain/documents"
	"tillsync/internal/domain/ledger"
	"tillsync/internal/infrastructure/storage/memory"
	"tillsync/internal/infrastructure/storage/sqlite"
	"tillsync/internal/reconcile"
	"tillsync/pkg/logger"
)

var (
	t0    = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	today = "2026-03-01"
)

type fixture struct {
	machine *Machine
	ledger  *ledger.Service
	clock   *clock.Manual
	audit   *sqlite.AuditLog
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "till.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	txm := sqlite.NewTxManager(db)
	clk := clock.NewStepping(t0, time.Millisecond)

	guards := ledger.DeleteGuards()
	for c, g := range DeleteGuards() {
		guards[c] = g
	}
	engine := reconcile.New(reconcile.Deps{
		Docs:      sqlite.NewDocumentRepo(txm),
		Outbox:    sqlite.NewOutboxRepo(txm),
		TxManager: txm,
		Remote:    memory.New(),
		Clock:     clk,
		Logger:    logger.Nop(),
	}, reconcile.Config{DeleteGuards: guards})
	t.Cleanup(engine.Close)

	audit, err := sqlite.NewAuditLog(txm, clk.Now)
	require.NoError(t, err)

	hash, err := security.HashPIN("4321")
	require.NoError(t, err)

	led := ledger.New(engine, ledger.Config{Audit: audit, Logger: logger.Nop()})
	m := New(engine, led, Config{
		Location: time.UTC,
		PIN:      security.NewPINVerifier(hash),
		Audit:    audit,
		Logger:   logger.Nop(),
	})

	ctx := appctx.WithActor(context.Background(), &appctx.Actor{
		UserID:   "u1",
		Name:     "Grace",
		Role:     appctx.RoleManager,
		DeviceID: "till-1",
	})
	return &fixture{machine: m, ledger: led, clock: clk, audit: audit, ctx: ctx}
}

func money(s string) types.Money { return types.MustMoney(s) }

func (f *fixture) cashSale(t *testing.T, amount string) {
	t.Helper()
	g, err := f.ledger.AddGood(f.ctx, ledger.GoodInput{
		Name:          "Item " + amount,
		SellingPrice:  money(amount),
		StockQuantity: types.NewQuantity(10),
	})
	require.NoError(t, err)
	_, err = f.ledger.AddSale(f.ctx, ledger.SaleInput{
		Items:         []ledger.LineInput{{GoodID: g.ID, Quantity: types.NewQuantity(1)}},
		PaymentMethod: documents.PaymentCash,
	})
	require.NoError(t, err)
}

func TestExpectedCash_FloatPlusCashSale(t *testing.T) {
	f := newFixture(t)

	rec, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("200")})
	require.NoError(t, err)
	assert.Equal(t, today, rec.ID)
	assert.Equal(t, StatusOpen, rec.Status)
	assert.Equal(t, "Grace", rec.OpenedBy)

	f.cashSale(t, "50")

	expected, err := f.machine.CalculateExpectedCash(f.ctx, today)
	require.NoError(t, err)
	assert.True(t, expected.Equal(money("250")), "got %s", expected)

	rec, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("250")})
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, rec.Status)
	assert.True(t, rec.Variance.IsZero())
	assert.Empty(t, rec.Notes)
	assert.Empty(t, rec.CloseSessions)
}

func TestExpectedCash_ManualCashOut(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("100")})
	require.NoError(t, err)

	_, err = f.ledger.AddCashEntry(f.ctx, ledger.CashEntryInput{Type: documents.CashOut, Amount: money("15.25")})
	require.NoError(t, err)
	backdated := t0.Add(-time.Hour)
	_, err = f.ledger.AddCashEntry(f.ctx, ledger.CashEntryInput{Type: documents.CashIn, Amount: money("40"), Date: &backdated})
	require.NoError(t, err)

	expected, err := f.machine.CalculateExpectedCash(f.ctx, today)
	require.NoError(t, err)
	assert.True(t, expected.Equal(money("84.75")), "entries before the session started are excluded, got %s", expected)

	rec, err := f.machine.GetDailyCashRecord(f.ctx, today)
	require.NoError(t, err)
	assert.Nil(t, rec.ExpectedCash, "preview does not write")
}

func TestCloseDay_VarianceRequiresNote(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("200")})
	require.NoError(t, err)
	f.cashSale(t, "50")

	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("200")})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("200"), Notes: "   "})
	assert.True(t, apperror.IsValidation(err), "blank notes do not count")

	rec, err := f.machine.GetDailyCashRecord(f.ctx, today)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, rec.Status)

	rec, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("200"), Notes: "till drawer miscounted"})
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, rec.Status)
	assert.True(t, rec.CountedCash.Equal(money("200")))
	assert.True(t, rec.ExpectedCash.Equal(money("250")))
	assert.True(t, rec.Variance.Equal(money("-50")))
	assert.Equal(t, "till drawer miscounted", rec.Notes)
	assert.Empty(t, rec.CloseSessions)
}

func TestReopenDay_ArchivesSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("200")})
	require.NoError(t, err)
	f.cashSale(t, "50")
	closed, err := f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("200"), Notes: "till drawer miscounted"})
	require.NoError(t, err)

	rec, err := f.machine.ReopenDay(f.ctx, ReopenDayInput{BusinessDate: today, Reason: "late delivery"})
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, rec.Status)
	require.Len(t, rec.CloseSessions, 1)

	s := rec.CloseSessions[0]
	assert.Equal(t, "Grace", s.ClosedBy)
	assert.True(t, closed.ClosedAt.Equal(s.ClosedAt))
	assert.True(t, s.ExpectedCash.Equal(money("250")))
	assert.True(t, s.CountedCash.Equal(money("200")))
	assert.True(t, s.ReopenFloat.Equal(money("200")))
	assert.Empty(t, s.ReopenedBy)

	assert.Nil(t, rec.ExpectedCash)
	assert.Nil(t, rec.CountedCash)
	assert.Nil(t, rec.ClosedAt)
	assert.Empty(t, rec.Notes)
	assert.True(t, rec.OpeningFloat.Equal(money("200")), "first-session fields are preserved")
	assert.True(t, rec.ReopenFloat.Equal(money("200")), "reopen float defaults to counted cash")
	assert.Equal(t, "Grace", rec.ReopenedBy)

	f.cashSale(t, "10")
	expected, err := f.machine.CalculateExpectedCash(f.ctx, today)
	require.NoError(t, err)
	assert.True(t, expected.Equal(money("210")), "got %s", expected)

	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("210")})
	require.NoError(t, err)
	float := money("0")
	rec, err = f.machine.ReopenDay(f.ctx, ReopenDayInput{BusinessDate: today, ReopenFloat: &float})
	require.NoError(t, err)
	require.Len(t, rec.CloseSessions, 2)
	assert.Equal(t, "Grace", rec.CloseSessions[1].ReopenedBy)
	assert.True(t, rec.CloseSessions[1].ReopenFloat.Equal(money("200")))
	assert.True(t, rec.ReopenFloat.IsZero())
}

func TestTransitions_Rejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("-1")})
	assert.True(t, apperror.IsValidation(err))
	all, err := f.machine.GetDailyCashRecords(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "failed open writes nothing")

	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("0")})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotOpen))

	_, err = f.machine.ReopenDay(f.ctx, ReopenDayInput{BusinessDate: today})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("50")})
	require.NoError(t, err)
	_, err = f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("50")})
	assert.True(t, apperror.HasCode(err, apperror.CodeAlreadyOpen))

	_, err = f.machine.ReopenDay(f.ctx, ReopenDayInput{BusinessDate: today})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotClosed))

	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("-5"), Notes: "x"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("50")})
	require.NoError(t, err)
	_, err = f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("50")})
	assert.True(t, apperror.HasCode(err, apperror.CodeDayClosed))
	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("50")})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotOpen))
}

func TestAutoCloseStaleOpenSessions(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("100")})
	require.NoError(t, err)
	f.cashSale(t, "20")

	f.clock.Set(t0.Add(24 * time.Hour))
	f.cashSale(t, "5")

	_, err = f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("100")})
	assert.True(t, apperror.HasCode(err, apperror.CodeStaleSession))

	closed, err := f.machine.AutoCloseStaleOpenSessions(f.ctx)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	rec := closed[0]
	assert.Equal(t, today, rec.BusinessDate)
	assert.Equal(t, StatusClosed, rec.Status)
	assert.True(t, rec.AutoClosed)
	assert.Equal(t, AutoCloseActor, rec.ClosedBy)
	assert.Nil(t, rec.CountedCash)
	assert.Nil(t, rec.Variance)
	assert.NotEmpty(t, rec.Notes)
	assert.True(t, rec.ExpectedCash.Equal(money("120")), "next-day cash is excluded, got %s", rec.ExpectedCash)

	again, err := f.machine.AutoCloseStaleOpenSessions(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	next, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("120")})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", next.BusinessDate)

	all, err := f.machine.GetDailyCashRecords(f.ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2026-03-02", all[0].BusinessDate)
}

func TestRecordUnlock(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("10")})
	require.NoError(t, err)

	in := UnlockInput{BusinessDate: today, Reason: "refund correction", PIN: "4321"}
	_, err = f.machine.RecordUnlock(f.ctx, in)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotClosed))

	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("10")})
	require.NoError(t, err)

	bad := in
	bad.PIN = "0000"
	_, err = f.machine.RecordUnlock(f.ctx, bad)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	_, err = f.machine.RecordUnlock(f.ctx, UnlockInput{BusinessDate: today, PIN: "4321"})
	assert.True(t, apperror.IsValidation(err), "reason is required")

	rec, err := f.machine.RecordUnlock(f.ctx, in)
	require.NoError(t, err)
	require.Len(t, rec.UnlockEvents, 1)
	assert.Equal(t, "Grace", rec.UnlockEvents[0].UnlockedBy)
	assert.Equal(t, "refund correction", rec.UnlockEvents[0].Reason)
	assert.Equal(t, StatusClosed, rec.Status)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("10")})
	require.NoError(t, err)
	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("10")})
	require.NoError(t, err)
	_, err = f.machine.ReopenDay(f.ctx, ReopenDayInput{BusinessDate: today})
	require.NoError(t, err)

	history, err := f.audit.History(f.ctx, entity.DailyCashRecords, today)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.AuditOpenDay, history[0].Action)
	assert.Equal(t, entity.AuditCloseDay, history[1].Action)
	assert.Equal(t, entity.AuditReopenDay, history[2].Action)
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)
	_, err := f.machine.OpenDay(f.ctx, OpenDayInput{OpeningFloat: money("200")})
	require.NoError(t, err)
	f.cashSale(t, "50")
	_, err = f.machine.CloseDay(f.ctx, CloseDayInput{CountedCash: money("200"), Notes: "short"})
	require.NoError(t, err)
	_, err = f.machine.ReopenDay(f.ctx, ReopenDayInput{BusinessDate: today})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.machine.ExportXLSX(f.ctx, &buf))

	x, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer x.Close()
	assert.Equal(t, []string{daysSheet, sessionsSheet, unlocksSheet}, x.GetSheetList())

	days, err := x.GetRows(daysSheet)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, today, days[1][0])
	assert.Equal(t, "open", days[1][1])
	assert.Equal(t, "200.00", days[1][2])

	sessions, err := x.GetRows(sessionsSheet)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "250.00", sessions[1][5])
	assert.Equal(t, "200.00", sessions[1][6])
}
