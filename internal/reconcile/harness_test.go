package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tillsync/internal/core/clock"
	"tillsync/internal/core/entity"
	"tillsync/internal/infrastructure/storage/memory"
	"tillsync/internal/infrastructure/storage/sqlite"
	"tillsync/pkg/logger"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type harness struct {
	engine *Engine
	remote *memory.Store
	db     *sqlite.DB
	docs   *sqlite.DocumentRepo
	outbox *sqlite.OutboxRepo
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	remote := memory.New()
	h := newHarnessWith(t, remote, cfg)
	h.remote = remote
	return h
}

func newHarnessWith(t *testing.T, remote RemoteStore, cfg Config) *harness {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "till.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	txm := sqlite.NewTxManager(db)
	h := &harness{
		db:     db,
		docs:   sqlite.NewDocumentRepo(txm),
		outbox: sqlite.NewOutboxRepo(txm),
	}
	h.engine = New(Deps{
		Docs:      h.docs,
		Outbox:    h.outbox,
		TxManager: txm,
		Remote:    remote,
		Clock:     clock.NewStepping(t0.Add(24*time.Hour), time.Millisecond),
		Logger:    logger.Nop(),
	}, cfg)
	t.Cleanup(h.engine.Close)
	return h
}

func (h *harness) pending(t *testing.T) []entity.OutboxEntry {
	t.Helper()
	entries, err := h.outbox.Pending(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func doc(id string, updated time.Time, body string) entity.Document {
	return entity.Document{ID: id, CreatedAt: t0, UpdatedAt: updated, Data: json.RawMessage(body)}
}

func seenDoc(id string, updated time.Time, body string) entity.Document {
	d := doc(id, updated, body)
	d.RemoteSeen = true
	return d
}

// slowRemote never answers before the caller's deadline.
type slowRemote struct {
	*memory.Store
}

func (s slowRemote) Upsert(ctx context.Context, c entity.Collection, docs []entity.Document) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s slowRemote) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// rejectingRemote refuses upserts of one record id.
type rejectingRemote struct {
	*memory.Store
	mu     sync.Mutex
	reject string
}

func (r *rejectingRemote) setReject(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reject = id
}

func (r *rejectingRemote) Upsert(ctx context.Context, c entity.Collection, docs []entity.Document) error {
	r.mu.Lock()
	reject := r.reject
	r.mu.Unlock()
	for _, d := range docs {
		if d.ID == reject {
			return errors.New("rejected by remote")
		}
	}
	return r.Store.Upsert(ctx, c, docs)
}

// heldRemote holds its first upsert until release is closed and fails
// every later one.
type heldRemote struct {
	*memory.Store
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newHeldRemote() *heldRemote {
	return &heldRemote{Store: memory.New(), started: make(chan struct{}), release: make(chan struct{})}
}

func (r *heldRemote) Upsert(ctx context.Context, c entity.Collection, docs []entity.Document) error {
	r.mu.Lock()
	r.calls++
	first := r.calls == 1
	r.mu.Unlock()
	if !first {
		return errors.New("connection reset")
	}
	close(r.started)
	select {
	case <-r.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.Store.Upsert(ctx, c, docs)
}

// heldScan holds its first scan until release is closed, whatever the
// caller's context says.
type heldScan struct {
	*memory.Store
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *heldScan) Scan(ctx context.Context, c entity.Collection) ([]entity.Document, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.started)
		<-r.release
	}
	return r.Store.Scan(context.WithoutCancel(ctx), c)
}
