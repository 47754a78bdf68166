package reconcile

import (
	"context"

	"tillsync/internal/core/entity"
)

// Documents is the collection side of the Local Durable Store.
type Documents interface {
	List(ctx context.Context, c entity.Collection) ([]entity.Document, error)
	Get(ctx context.Context, c entity.Collection, id string) (entity.Document, error)
	// Upsert writes documents including their RemoteSeen flag.
	Upsert(ctx context.Context, c entity.Collection, docs ...entity.Document) error
	// UpsertLocal writes documents keeping the stored RemoteSeen flag.
	UpsertLocal(ctx context.Context, c entity.Collection, docs ...entity.Document) error
	Delete(ctx context.Context, c entity.Collection, ids ...string) error
	Retain(ctx context.Context, c entity.Collection, keep []string) error
	MarkRemoteSeen(ctx context.Context, c entity.Collection, ids ...string) error
}

// Outbox is the durable queue of single-record remote writes.
type Outbox interface {
	Enqueue(ctx context.Context, e entity.OutboxEntry) (int64, error)
	Pending(ctx context.Context, limit int) ([]entity.OutboxEntry, error)
	Remove(ctx context.Context, seq int64) error
	MarkFailed(ctx context.Context, seq int64, reason string) error
	// RemoveForRecords drops entries of ids with a sequence number <= upTo.
	RemoveForRecords(ctx context.Context, c entity.Collection, ids []string, upTo int64) (int64, error)
	// LastSeq returns the highest queued sequence number, 0 when empty.
	LastSeq(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

// RemoteStore is the Remote Store Client contract. Upsert must be
// conditional on UpdatedAt and merge fields, so replays are no-ops.
type RemoteStore interface {
	Ping(ctx context.Context) error
	Scan(ctx context.Context, c entity.Collection) ([]entity.Document, error)
	Upsert(ctx context.Context, c entity.Collection, docs []entity.Document) error
	Delete(ctx context.Context, c entity.Collection, id string) error
}

// ChangeFeed delivers remote document events until ctx is done.
type ChangeFeed interface {
	Watch(ctx context.Context, fn func(entity.Change)) error
}
