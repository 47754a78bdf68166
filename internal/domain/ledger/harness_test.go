package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tillsync/internal/core/clock"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/types"
	"tillsync/internal/infrastructure/storage/memory"
	"tillsync/internal/infrastructure/storage/sqlite"
	"tillsync/internal/reconcile"
	"tillsync/pkg/logger"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	engine *reconcile.Engine
	clock  *clock.Manual
	remote *memory.Store
	db     *sqlite.DB
	outbox *sqlite.OutboxRepo
	audit  *sqlite.AuditLog
	ctx    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "till.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	txm := sqlite.NewTxManager(db)
	clk := clock.NewStepping(t0, time.Millisecond)
	remote := memory.New()
	outbox := sqlite.NewOutboxRepo(txm)

	engine := reconcile.New(reconcile.Deps{
		Docs:      sqlite.NewDocumentRepo(txm),
		Outbox:    outbox,
		TxManager: txm,
		Remote:    remote,
		Clock:     clk,
		Logger:    logger.Nop(),
	}, reconcile.Config{DeleteGuards: DeleteGuards()})
	t.Cleanup(engine.Close)

	audit, err := sqlite.NewAuditLog(txm, clk.Now)
	require.NoError(t, err)

	svc := New(engine, Config{Audit: audit, Logger: logger.Nop()})

	ctx := appctx.WithActor(context.Background(), &appctx.Actor{
		UserID:   "u1",
		Name:     "Grace",
		Role:     appctx.RoleCashier,
		DeviceID: "till-1",
	})
	return &fixture{svc: svc, engine: engine, clock: clk, remote: remote, db: db, outbox: outbox, audit: audit, ctx: ctx}
}

func money(s string) types.Money { return types.MustMoney(s) }

func qty(n int64) types.Quantity { return types.NewQuantity(n) }

func price(s string) *types.Money {
	m := types.MustMoney(s)
	return &m
}

func (f *fixture) good(t *testing.T, name string, stock int64, sell string) string {
	t.Helper()
	g, err := f.svc.AddGood(f.ctx, GoodInput{
		Name:          name,
		SellingPrice:  money(sell),
		CostPrice:     money("0"),
		StockQuantity: qty(stock),
	})
	require.NoError(t, err)
	return g.ID
}

func (f *fixture) stock(t *testing.T, id string) types.Quantity {
	t.Helper()
	g, err := f.svc.GetGood(f.ctx, id)
	require.NoError(t, err)
	return g.StockQuantity
}

func (f *fixture) cashEntries(t *testing.T) []entityCash {
	t.Helper()
	entries, err := f.svc.GetCashEntries(f.ctx)
	require.NoError(t, err)
	out := make([]entityCash, len(entries))
	for i, e := range entries {
		out[i] = entityCash{ID: e.ID, Type: string(e.Type), Amount: e.Amount.StringFixed(2), Source: string(e.Source), SourceID: e.SourceID, Date: e.Date}
	}
	return out
}

type entityCash struct {
	ID       string
	Type     string
	Amount   string
	Source   string
	SourceID string
	Date     time.Time
}

func (f *fixture) pendingFor(t *testing.T, c entity.Collection) int {
	t.Helper()
	entries, err := f.outbox.Pending(f.ctx, 0)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.Collection == c {
			n++
		}
	}
	return n
}
