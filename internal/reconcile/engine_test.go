package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/internal/infrastructure/storage/memory"
)

func TestFetchAndMerge_RemoteNewerWinsAndHydratesOnce(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.docs.Upsert(ctx, entity.Goods, seenDoc("a", t0, `{"v":1}`)))
	h.remote.Seed(entity.Goods, doc("a", t0.Add(time.Minute), `{"v":2}`))

	got, err := h.engine.FetchAndMerge(ctx, entity.Goods)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"v":2}`, string(got[0].Data))
	assert.True(t, got[0].RemoteSeen)
	assert.Equal(t, 1, h.remote.Calls("scan"))

	// Served from local for the rest of the session.
	h.remote.Seed(entity.Goods, doc("b", t0, `{"v":1}`))
	got, err = h.engine.FetchAndMerge(ctx, entity.Goods)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, h.remote.Calls("scan"))

	h.engine.Resync()
	got, err = h.engine.FetchAndMerge(ctx, entity.Goods)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 2, h.remote.Calls("scan"))
}

func TestFetchAndMerge_LocalNewerIsPushed(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.docs.Upsert(ctx, entity.Goods, seenDoc("a", t0.Add(time.Minute), `{"v":2}`)))
	h.remote.Seed(entity.Goods, doc("a", t0, `{"v":1}`))

	got, err := h.engine.FetchAndMerge(ctx, entity.Goods)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"v":2}`, string(got[0].Data))

	remote, ok := h.remote.Get(entity.Goods, "a")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(remote.Data))
}

func TestOfflineRecord_IsNeverLostAndPushedLater(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.remote.SetOffline(true)

	require.NoError(t, h.engine.Put(ctx, entity.Sales, doc("s1", t0, `{"total":"5"}`)))
	require.Len(t, h.pending(t), 1)

	// Remote still down: the local copy is served and nothing is marked hydrated.
	got, err := h.engine.FetchAndMerge(ctx, entity.Sales)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, h.engine.Hydration().Done(entity.Sales))

	h.remote.SetOffline(false)
	got, err = h.engine.FetchAndMerge(ctx, entity.Sales)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].RemoteSeen)

	_, ok := h.remote.Get(entity.Sales, "s1")
	assert.True(t, ok)
	assert.Empty(t, h.pending(t), "the hydration push supersedes the queued write")
}

func TestFetchAndMerge_CancelledCallerDoesNotFailSharedHydration(t *testing.T) {
	remote := &heldScan{Store: memory.New(), started: make(chan struct{}), release: make(chan struct{})}
	remote.Seed(entity.Goods, doc("a", t0, `{"v":1}`))
	h := newHarnessWith(t, remote, Config{})

	first, cancel := context.WithCancel(context.Background())
	go func() { _, _ = h.engine.FetchAndMerge(first, entity.Goods) }()
	<-remote.started

	type result struct {
		docs []entity.Document
		err  error
	}
	waiting := make(chan result, 1)
	go func() {
		docs, err := h.engine.FetchAndMerge(context.Background(), entity.Goods)
		waiting <- result{docs, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(remote.release)

	res := <-waiting
	require.NoError(t, res.err)
	require.Len(t, res.docs, 1)
	assert.True(t, h.engine.Hydration().Done(entity.Goods))
}

func TestFetchAndMerge_RemoteDeletionRespectsGuard(t *testing.T) {
	ctx := context.Background()

	guarded := newHarness(t, Config{DeleteGuards: map[entity.Collection]entity.DeleteGuard{
		entity.Debtors: entity.NeverDelete,
	}})
	require.NoError(t, guarded.docs.Upsert(ctx, entity.Debtors, seenDoc("d1", t0, `{"balance":"20"}`)))

	got, err := guarded.engine.FetchAndMerge(ctx, entity.Debtors)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, ok := guarded.remote.Get(entity.Debtors, "d1")
	assert.True(t, ok, "kept record is pushed back")

	open := newHarness(t, Config{})
	require.NoError(t, open.docs.Upsert(ctx, entity.Debtors, seenDoc("d1", t0, `{"balance":"0"}`)))

	got, err = open.engine.FetchAndMerge(ctx, entity.Debtors)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchAndMerge_DoesNotResurrectPendingDelete(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	h.remote.Seed(entity.Goods, doc("a", t0, `{"v":1}`))
	require.NoError(t, h.docs.Upsert(ctx, entity.Goods, seenDoc("a", t0, `{"v":1}`)))

	h.remote.SetOffline(true)
	require.NoError(t, h.engine.Delete(ctx, entity.Goods, "a"))
	h.remote.SetOffline(false)

	// Scan happens before the queued delete is drained.
	got, err := h.engine.FetchAndMerge(ctx, entity.Goods)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDrainOutbox_ReplayIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	h.remote.SetOffline(true)
	require.NoError(t, h.engine.Put(ctx, entity.Sales, doc("s1", t0, `{"total":"5"}`)))
	entry := h.pending(t)[0]
	h.remote.SetOffline(false)

	n, err := h.engine.DrainOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	first, ok := h.remote.Get(entity.Sales, "s1")
	require.True(t, ok)

	// Crash after the push but before the dequeue: the entry is delivered again.
	_, err = h.outbox.Enqueue(ctx, entry)
	require.NoError(t, err)
	n, err = h.engine.DrainOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	second, _ := h.remote.Get(entity.Sales, "s1")
	assert.JSONEq(t, string(first.Data), string(second.Data))
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)

	// A stale replay never overwrites a newer write from another till.
	h.remote.Seed(entity.Sales, doc("s1", t0.Add(time.Hour), `{"total":"9"}`))
	_, err = h.outbox.Enqueue(ctx, entry)
	require.NoError(t, err)
	_, err = h.engine.DrainOutbox(ctx)
	require.NoError(t, err)
	latest, _ := h.remote.Get(entity.Sales, "s1")
	assert.JSONEq(t, `{"total":"9"}`, string(latest.Data))
}

func TestDrainOutbox_FailedEntryBlocksLaterWritesOfSameRecord(t *testing.T) {
	remote := &rejectingRemote{Store: memory.New()}
	h := newHarnessWith(t, remote, Config{})
	ctx := context.Background()

	h.engine.SetOnline(ctx, false)
	require.NoError(t, h.engine.Put(ctx, entity.Goods, doc("a", t0, `{"v":1}`)))
	require.NoError(t, h.engine.Put(ctx, entity.Goods, doc("b", t0, `{"v":1}`)))
	require.NoError(t, h.engine.Put(ctx, entity.Goods, doc("a", t0.Add(time.Minute), `{"v":2}`)))

	remote.setReject("a")
	h.engine.SetOnline(ctx, true)

	pending := h.pending(t)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].RecordID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "rejected by remote")
	assert.Equal(t, 0, pending[1].Attempts, "blocked behind the failed entry, not attempted")

	_, ok := remote.Get(entity.Goods, "b")
	assert.True(t, ok)

	remote.setReject("")
	n, err := h.engine.DrainOutbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, _ := remote.Get(entity.Goods, "a")
	assert.JSONEq(t, `{"v":2}`, string(got.Data))
}

func TestDrainOutbox_IsSingleFlight(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	h.engine.SetOnline(ctx, false)
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		require.NoError(t, h.engine.Put(ctx, entity.Sales, doc(id, t0, `{}`)))
	}
	h.engine.online.Store(true)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.engine.DrainOutbox(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, h.remote.Calls("upsert"))
	assert.Empty(t, h.pending(t))
}

func TestPut_RemoteTimeoutQueuesInsteadOfBlocking(t *testing.T) {
	h := newHarnessWith(t, slowRemote{Store: memory.New()}, Config{RemoteTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, h.engine.Put(ctx, entity.Sales, doc("s1", t0, `{}`)))
	assert.Less(t, time.Since(start), 2*time.Second)

	pending := h.pending(t)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "deadline exceeded")

	got, err := h.engine.Get(ctx, entity.Sales, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
}

func TestPut_UnauthenticatedSessionStaysLocal(t *testing.T) {
	h := newHarness(t, Config{Authenticated: func() bool { return false }})
	ctx := context.Background()

	require.NoError(t, h.engine.Put(ctx, entity.Sales, doc("s1", t0, `{}`)))
	assert.Equal(t, 0, h.remote.Calls("upsert"))
	assert.Len(t, h.pending(t), 1)
}

func TestSetCollection_FailureQueuesNothing(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.remote.SetOffline(true)

	require.NoError(t, h.engine.SetCollection(ctx, entity.Goods, []entity.Document{doc("g1", t0, `{}`)}))
	assert.Empty(t, h.pending(t))

	got, err := h.engine.Get(ctx, entity.Goods, "g1")
	require.NoError(t, err)
	assert.False(t, got.RemoteSeen)
}

func TestSetCollection_SupersedesQueuedWritesAndReplacesLocal(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	h.remote.SetOffline(true)
	require.NoError(t, h.engine.Put(ctx, entity.Goods, doc("x", t0, `{"v":1}`)))
	require.NoError(t, h.engine.Put(ctx, entity.Goods, doc("old", t0, `{"v":1}`)))
	require.NoError(t, h.engine.Put(ctx, entity.Sales, doc("y", t0, `{"v":1}`)))
	require.Len(t, h.pending(t), 3)
	h.remote.SetOffline(false)

	require.NoError(t, h.engine.SetCollection(ctx, entity.Goods, []entity.Document{doc("x", t0.Add(time.Minute), `{"v":2}`)}))

	pending := h.pending(t)
	require.Len(t, pending, 2)
	assert.Equal(t, "old", pending[0].RecordID, "removals are not propagated; its queued write stays")
	assert.Equal(t, "y", pending[1].RecordID)

	got, ok := h.remote.Get(entity.Goods, "x")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(got.Data))

	local, err := h.engine.FetchAndMerge(ctx, entity.Goods)
	require.NoError(t, err)
	ids := make([]string, 0, len(local))
	for _, d := range local {
		ids = append(ids, d.ID)
	}
	assert.Contains(t, ids, "x")
}

func TestSetCollection_KeepsWritesQueuedDuringPush(t *testing.T) {
	remote := newHeldRemote()
	h := newHarnessWith(t, remote, Config{})
	ctx := context.Background()

	pushed := make(chan error, 1)
	go func() {
		pushed <- h.engine.SetCollection(ctx, entity.Goods, []entity.Document{doc("a", t0, `{"v":1}`)})
	}()
	<-remote.started

	// Its own drain fails, so v2 is still queued when the batch lands.
	require.NoError(t, h.engine.Put(ctx, entity.Goods, doc("a", t0.Add(time.Hour), `{"v":2}`)))
	close(remote.release)
	require.NoError(t, <-pushed)

	got, ok := remote.Get(entity.Goods, "a")
	require.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(got.Data))

	local, err := h.engine.Get(ctx, entity.Goods, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(local.Data))

	pending := h.pending(t)
	require.Len(t, pending, 1, "the newer write is still owed to the remote")
	assert.Equal(t, "a", pending[0].RecordID)
	assert.Equal(t, t0.Add(time.Hour), pending[0].Payload.UpdatedAt)
}

func TestPut_LocalStoreFailurePropagates(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	sub := h.engine.Subscribe(4, entity.Sales)
	defer sub.Cancel()

	require.NoError(t, h.db.Close())

	err := h.engine.Put(ctx, entity.Sales, doc("s1", t0, `{}`))
	assert.True(t, apperror.IsPersistenceFailure(err))
	err = h.engine.Delete(ctx, entity.Sales, "s1")
	assert.True(t, apperror.IsPersistenceFailure(err))

	assert.Equal(t, 0, h.remote.Calls("upsert"))
	assert.Equal(t, 0, h.remote.Calls("delete"))
	select {
	case snap := <-sub.C():
		t.Fatalf("unexpected snapshot of %s", snap.Collection)
	default:
	}
}

func TestAtomically_CommitsTogetherOrNotAtAll(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	err := h.engine.Atomically(ctx, func(ctx context.Context) error {
		require.NoError(t, h.engine.Put(ctx, entity.Sales, doc("s1", t0, `{}`)))
		require.NoError(t, h.engine.Put(ctx, entity.CashEntries, doc("c1", t0, `{}`)))
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = h.engine.Get(ctx, entity.Sales, "s1")
	assert.True(t, apperror.IsNotFound(err))
	assert.Empty(t, h.pending(t))
	assert.Equal(t, 0, h.remote.Calls("upsert"))

	require.NoError(t, h.engine.Atomically(ctx, func(ctx context.Context) error {
		if err := h.engine.Put(ctx, entity.Sales, doc("s1", t0, `{}`)); err != nil {
			return err
		}
		return h.engine.Put(ctx, entity.CashEntries, doc("c1", t0, `{}`))
	}))
	assert.Empty(t, h.pending(t), "drained after commit")
	_, ok := h.remote.Get(entity.CashEntries, "c1")
	assert.True(t, ok)
}

func TestEngine_LocalOnlyMode(t *testing.T) {
	h := newHarnessWith(t, nil, Config{})
	ctx := context.Background()

	require.NoError(t, h.engine.Put(ctx, entity.Goods, doc("g1", t0, `{}`)))
	got, err := h.engine.FetchAndMerge(ctx, entity.Goods)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = h.engine.DrainOutbox(ctx)
	assert.True(t, apperror.IsRemoteUnavailable(err))

	st, err := h.engine.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Online)
	assert.Equal(t, 1, st.Pending)
}

func TestProbe_ReconnectDrains(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	h.remote.SetOffline(true)
	require.Error(t, h.engine.Probe(ctx))
	assert.False(t, h.engine.Online())

	require.NoError(t, h.engine.Put(ctx, entity.Sales, doc("s1", t0, `{}`)))
	assert.Equal(t, 0, h.remote.Calls("upsert"), "offline writes do not touch the remote")

	h.remote.SetOffline(false)
	require.NoError(t, h.engine.Probe(ctx))
	assert.True(t, h.engine.Online())
	assert.Empty(t, h.pending(t))
}
