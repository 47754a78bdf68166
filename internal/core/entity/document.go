package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document is the untyped envelope of a record as the stores see it:
// key and timestamps as columns, the full record as JSON.
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Data      json.RawMessage

	// RemoteSeen is local bookkeeping: the record has been read from or
	// confirmed by the remote store at least once. A local record that was
	// never seen remotely was created offline and must not be treated as a
	// remote deletion during hydration.
	RemoteSeen bool
}

// Encode converts a typed record into a Document.
func Encode(r Record) (Document, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", r.RecordID(), err)
	}
	created, updated := r.Timestamps()
	return Document{
		ID:        r.RecordID(),
		CreatedAt: created,
		UpdatedAt: updated,
		Data:      data,
	}, nil
}

// Decode converts a Document back into a typed record.
func Decode[T any](d Document) (T, error) {
	var v T
	if err := json.Unmarshal(d.Data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", d.ID, err)
	}
	return v, nil
}

// DecodeAll decodes a slice of documents, stopping at the first failure.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ChangeType is the kind of a remote push notification.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// Change describes one remote document event delivered by a live listener.
// For ChangeRemoved only Doc.ID is meaningful.
type Change struct {
	Type       ChangeType
	Collection Collection
	Doc        Document
}
