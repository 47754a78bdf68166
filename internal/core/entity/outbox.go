package entity

import "time"

// Operation is the kind of a queued remote write.
type Operation string

const (
	OpUpsert Operation = "upsert"
	OpDelete Operation = "delete"
)

// OutboxEntry is a single-record remote write waiting for confirmation.
// Entries are drained in Seq order and removed only after the remote accepted them.
type OutboxEntry struct {
	Seq        int64
	Op         Operation
	Collection Collection
	RecordID   string
	// Payload is the record as of enqueue time; empty for deletes.
	Payload    Document
	EnqueuedAt time.Time
	Attempts   int
	LastError  string
}
