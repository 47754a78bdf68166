// Package reconcile keeps the Local Durable Store and the remote store
// converging: hydration, dual writes, outbox draining and live ingestion.
//
// Every write commits locally first. Remote calls are bounded by
// Config.RemoteTimeout and their failures are logged and queued, never
// returned to the writer. Local store failures always propagate.
package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/clock"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/tx"
	"tillsync/pkg/logger"
)

var tracer = otel.Tracer("tillsync/reconcile")

// errOffline is the cause attached to RemoteUnavailable when no call was attempted.
var errOffline = errors.New("remote store offline or not authenticated")

// DefaultRemoteTimeout bounds a single remote call.
const DefaultRemoteTimeout = 10 * time.Second

// Config tunes an Engine.
type Config struct {
	// RemoteTimeout bounds every remote call; exceeding it counts as a failure.
	RemoteTimeout time.Duration

	// DeleteGuards decides, per collection, whether a record the remote no
	// longer has may be removed locally. Collections without a guard allow it.
	DeleteGuards map[entity.Collection]entity.DeleteGuard

	// Authenticated reports whether the session may talk to the remote.
	// nil means always.
	Authenticated func() bool
}

// Deps are the collaborators of an Engine. Remote may be nil (local-only mode).
type Deps struct {
	Docs      Documents
	Outbox    Outbox
	TxManager tx.Manager
	Remote    RemoteStore
	Clock     clock.Clock
	Logger    *logger.Logger
}

// Status is a point-in-time view of the engine for health checks and the CLI.
type Status struct {
	Online   bool                `json:"online"`
	Pending  int                 `json:"pending"`
	Hydrated []entity.Collection `json:"hydrated"`
}

// Engine is the Reconciliation Engine of one authenticated session.
type Engine struct {
	docs   Documents
	outbox Outbox
	txm    tx.Manager
	remote RemoteStore
	clock  clock.Clock
	log    *logger.Logger
	cfg    Config

	hydration *HydrationState
	hydrating singleflight.Group
	bus       *Broadcaster

	online     atomic.Bool
	closed     atomic.Bool
	draining   atomic.Bool
	drainAgain atomic.Bool
}

// New creates an engine. It starts online when a remote is configured.
func New(deps Deps, cfg Config) *Engine {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}

	e := &Engine{
		docs:      deps.Docs,
		outbox:    deps.Outbox,
		txm:       deps.TxManager,
		remote:    deps.Remote,
		clock:     deps.Clock,
		log:       deps.Logger.WithComponent("reconcile"),
		cfg:       cfg,
		hydration: NewHydrationState(),
		bus:       NewBroadcaster(),
	}
	e.online.Store(deps.Remote != nil)
	return e
}

// Clock returns the clock stamping records written through this engine.
func (e *Engine) Clock() clock.Clock {
	return e.clock
}

// Hydration exposes the session's hydration flags.
func (e *Engine) Hydration() *HydrationState {
	return e.hydration
}

// Online reports whether remote calls are currently attempted.
func (e *Engine) Online() bool {
	return e.available()
}

// SetOnline records a connectivity change. Going online drains the outbox.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	if e.remote == nil {
		return
	}
	was := e.online.Swap(online)
	switch {
	case online && !was:
		e.log.WithContext(ctx).Infow("remote reachable; draining outbox")
		e.kick(ctx)
	case !online && was:
		e.log.WithContext(ctx).Warnw("remote unreachable; writes will queue")
	}
}

// Probe pings the remote regardless of the online flag and updates it.
func (e *Engine) Probe(ctx context.Context) error {
	if e.remote == nil {
		return apperror.NewRemoteUnavailable("ping", errOffline)
	}
	err := e.call(ctx, "ping", func(ctx context.Context) error {
		return e.remote.Ping(ctx)
	})
	e.SetOnline(ctx, err == nil)
	return err
}

// Resync clears the hydration flags so every collection is pulled again.
func (e *Engine) Resync() {
	e.hydration.Reset()
}

// Close stops remote traffic and ends every subscription.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.bus.Close()
}

// Status reports connectivity, queue depth and hydrated collections.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	n, err := e.outbox.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Online: e.available(), Pending: n, Hydrated: e.hydration.Hydrated()}, nil
}

// Get reads one local record.
func (e *Engine) Get(ctx context.Context, c entity.Collection, id string) (entity.Document, error) {
	return e.docs.Get(ctx, c, id)
}

// FetchAndMerge returns the collection, pulling and merging the remote copy
// the first time it is read in this session. Later reads serve local data
// only, so a slow remote read never clobbers a recent local write.
// When the remote cannot be reached, or the call runs inside Atomically,
// the local copy is returned and the collection stays unhydrated.
func (e *Engine) FetchAndMerge(ctx context.Context, c entity.Collection) ([]entity.Document, error) {
	_, inScope := ctx.Value(scopeKey{}).(*writeScope)
	if inScope || e.hydration.Done(c) || !e.available() {
		return e.docs.List(ctx, c)
	}
	// Callers share the flight, so one caller giving up must not fail it for the rest.
	flight := context.WithoutCancel(ctx)
	v, err, _ := e.hydrating.Do(string(c), func() (any, error) {
		return e.hydrate(flight, c)
	})
	if err != nil {
		return nil, err
	}
	return v.([]entity.Document), nil
}

func (e *Engine) hydrate(ctx context.Context, c entity.Collection) ([]entity.Document, error) {
	if e.hydration.Done(c) {
		return e.docs.List(ctx, c)
	}

	var remote []entity.Document
	err := e.call(ctx, "scan", func(ctx context.Context) error {
		var err error
		remote, err = e.remote.Scan(ctx, c)
		return err
	})
	if err != nil {
		e.log.WithContext(ctx).Warnw("hydration skipped; serving local copy",
			"collection", c, "error", err)
		return e.docs.List(ctx, c)
	}

	var res entity.MergeResult
	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		deleting, err := e.pendingDeletes(ctx, c)
		if err != nil {
			return err
		}
		local, err := e.docs.List(ctx, c)
		if err != nil {
			return err
		}
		res = entity.Merge(local, withoutIDs(remote, deleting), e.cfg.DeleteGuards[c])
		if err := e.docs.Upsert(ctx, c, res.Merged...); err != nil {
			return err
		}
		return e.docs.Delete(ctx, c, res.Removed...)
	})
	if err != nil {
		return nil, err
	}
	e.hydration.Mark(c)

	log := e.log.WithContext(ctx)
	log.Debugw("collection hydrated",
		"collection", c, "records", len(res.Merged), "push", len(res.Push), "removed", len(res.Removed))
	if len(res.Preserved) > 0 {
		log.Infow("remote deletion refused by guard; record kept",
			"collection", c, "record_ids", res.Preserved)
	}

	if len(res.Push) > 0 {
		if err := e.push(ctx, c, res.Push); err != nil {
			return nil, err
		}
	}

	docs, err := e.docs.List(ctx, c)
	if err != nil {
		return nil, err
	}
	e.bus.Publish(Snapshot{Collection: c, Docs: docs, At: e.clock.Now()})
	return docs, nil
}

// SetCollection replaces a whole collection locally, then pushes it as one
// batched upsert. A failed push queues nothing: the next hydration pushes
// whatever the remote is missing. A successful push supersedes the
// single-record writes for the same ids queued before it was sent. Removals are not sent to the remote.
func (e *Engine) SetCollection(ctx context.Context, c entity.Collection, docs []entity.Document) error {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}

	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := e.docs.UpsertLocal(ctx, c, docs...); err != nil {
			return err
		}
		return e.docs.Retain(ctx, c, ids)
	})
	if err != nil {
		return err
	}
	e.publish(ctx, c)

	if len(docs) == 0 || !e.available() {
		return nil
	}
	return e.push(ctx, c, docs)
}

// push sends docs as one batch and, on success, records the confirmation
// and drops the queued entries it supersedes. Entries queued while the call
// was in flight may carry newer versions and stay queued. Remote failures
// are logged only.
func (e *Engine) push(ctx context.Context, c entity.Collection, docs []entity.Document) error {
	mark, err := e.outbox.LastSeq(ctx)
	if err != nil {
		return err
	}
	err = e.call(ctx, "upsert", func(ctx context.Context) error {
		return e.remote.Upsert(ctx, c, docs)
	})
	if err != nil {
		e.log.WithContext(ctx).Warnw("batched push failed",
			"collection", c, "records", len(docs), "operation", "upsert", "error", err)
		return nil
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := e.docs.MarkRemoteSeen(ctx, c, ids...); err != nil {
			return err
		}
		n, err := e.outbox.RemoveForRecords(ctx, c, ids, mark)
		if err != nil {
			return err
		}
		if n > 0 {
			e.log.WithContext(ctx).Debugw("queued writes superseded by batch", "collection", c, "entries", n)
		}
		return nil
	})
}

// Put writes one record locally together with its outbox entry, then drains
// while online. It succeeds once the local commit succeeds.
func (e *Engine) Put(ctx context.Context, c entity.Collection, doc entity.Document) error {
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := e.docs.UpsertLocal(ctx, c, doc); err != nil {
			return err
		}
		_, err := e.outbox.Enqueue(ctx, entity.OutboxEntry{
			Op:         entity.OpUpsert,
			Collection: c,
			RecordID:   doc.ID,
			Payload:    doc,
			EnqueuedAt: e.clock.Now(),
		})
		return err
	})
	if err != nil {
		return err
	}
	e.afterWrite(ctx, c)
	return nil
}

// Delete removes one record locally and queues the remote delete.
func (e *Engine) Delete(ctx context.Context, c entity.Collection, id string) error {
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := e.docs.Delete(ctx, c, id); err != nil {
			return err
		}
		_, err := e.outbox.Enqueue(ctx, entity.OutboxEntry{
			Op:         entity.OpDelete,
			Collection: c,
			RecordID:   id,
			EnqueuedAt: e.clock.Now(),
		})
		return err
	})
	if err != nil {
		return err
	}
	e.afterWrite(ctx, c)
	return nil
}

type scopeKey struct{}

// writeScope collects the collections touched inside Atomically.
type writeScope struct {
	touched map[entity.Collection]bool
}

// Atomically runs fn in one local transaction. Put and Delete calls inside
// fn commit together or not at all; snapshots and the outbox drain happen
// once, after the commit.
func (e *Engine) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(scopeKey{}).(*writeScope); nested {
		return fn(ctx)
	}
	scope := &writeScope{touched: make(map[entity.Collection]bool)}
	if err := e.txm.RunInTransaction(context.WithValue(ctx, scopeKey{}, scope), fn); err != nil {
		return err
	}
	for _, c := range entity.Collections {
		if scope.touched[c] {
			e.publish(ctx, c)
		}
	}
	if len(scope.touched) > 0 {
		e.kick(ctx)
	}
	return nil
}

// RunInTransaction makes the engine a tx.Manager for domain services.
func (e *Engine) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.Atomically(ctx, fn)
}

func (e *Engine) afterWrite(ctx context.Context, c entity.Collection) {
	if scope, ok := ctx.Value(scopeKey{}).(*writeScope); ok {
		scope.touched[c] = true
		return
	}
	e.publish(ctx, c)
	e.kick(ctx)
}

// kick drains the outbox when the remote is reachable. Drain errors are
// local store failures of bookkeeping that already committed; they are logged.
func (e *Engine) kick(ctx context.Context) {
	if !e.available() {
		return
	}
	if _, err := e.DrainOutbox(ctx); err != nil {
		e.log.WithContext(ctx).Errorw("outbox drain failed", "error", err)
	}
}

// Subscribe returns a handle on snapshots of the given collections (all when none given).
func (e *Engine) Subscribe(buffer int, collections ...entity.Collection) *Subscription {
	return e.bus.Subscribe(buffer, collections...)
}

// OnCollectionChange calls fn with every published snapshot until the
// returned function is called.
func (e *Engine) OnCollectionChange(fn func(Snapshot)) (unsubscribe func()) {
	sub := e.bus.Subscribe(DefaultSubscriptionBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range sub.C() {
			fn(snap)
		}
	}()
	return func() {
		sub.Cancel()
		<-done
	}
}

func (e *Engine) publish(ctx context.Context, c entity.Collection) {
	if !e.bus.Wants(c) {
		return
	}
	docs, err := e.docs.List(ctx, c)
	if err != nil {
		e.log.WithContext(ctx).Errorw("snapshot read failed", "collection", c, "error", err)
		return
	}
	e.bus.Publish(Snapshot{Collection: c, Docs: docs, At: e.clock.Now()})
}

func (e *Engine) available() bool {
	if e.remote == nil || e.closed.Load() || !e.online.Load() {
		return false
	}
	return e.cfg.Authenticated == nil || e.cfg.Authenticated()
}

// call runs one remote operation under the configured timeout and wraps
// any failure as RemoteUnavailable.
func (e *Engine) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if e.remote == nil || e.closed.Load() {
		return apperror.NewRemoteUnavailable(op, errOffline)
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.RemoteTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "remote."+op)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return apperror.NewRemoteUnavailable(op, err)
	}
	span.SetAttributes(attribute.Bool("remote.ok", true))
	return nil
}

// pendingDeletes returns ids of c whose newest queued operation is a delete.
// Hydration and live changes must not resurrect them.
func (e *Engine) pendingDeletes(ctx context.Context, c entity.Collection) (map[string]bool, error) {
	entries, err := e.outbox.Pending(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, entry := range entries {
		if entry.Collection != c {
			continue
		}
		out[entry.RecordID] = entry.Op == entity.OpDelete
	}
	for id, deleting := range out {
		if !deleting {
			delete(out, id)
		}
	}
	return out, nil
}

func withoutIDs(docs []entity.Document, ids map[string]bool) []entity.Document {
	if len(ids) == 0 {
		return docs
	}
	out := make([]entity.Document, 0, len(docs))
	for _, d := range docs {
		if !ids[d.ID] {
			out = append(out, d)
		}
	}
	return out
}
