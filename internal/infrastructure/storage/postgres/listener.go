package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
	"tillsync/pkg/logger"
)

// notification is the payload emitted by the sync_documents trigger.
type notification struct {
	Op         string `json:"op"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

func parseNotification(payload string) (notification, entity.Collection, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return n, "", fmt.Errorf("%w: %v", errNotification, err)
	}
	c, err := entity.ParseCollection(n.Collection)
	if err != nil {
		return n, "", fmt.Errorf("%w: %v", errNotification, err)
	}
	if n.ID == "" {
		return n, "", fmt.Errorf("%w: empty id", errNotification)
	}
	return n, c, nil
}

// Watch LISTENs for document changes and calls fn for each, in arrival order,
// until ctx is done. The full document is re-read because NOTIFY payloads are
// size-limited; a document deleted again before the read is reported removed.
func (s *DocumentStore) Watch(ctx context.Context, fn func(entity.Change)) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		change, err := s.resolve(ctx, n.Payload)
		if err != nil {
			logger.Warn(ctx, "skipping change notification", "payload", n.Payload, "error", err)
			continue
		}
		fn(change)
	}
}

func (s *DocumentStore) resolve(ctx context.Context, payload string) (entity.Change, error) {
	n, c, err := parseNotification(payload)
	if err != nil {
		return entity.Change{}, err
	}

	removed := entity.Change{Type: entity.ChangeRemoved, Collection: c, Doc: entity.Document{ID: n.ID}}
	if n.Op == "DELETE" {
		return removed, nil
	}

	doc, err := s.Get(ctx, c, n.ID)
	if apperror.IsNotFound(err) {
		return removed, nil
	}
	if err != nil {
		return entity.Change{}, err
	}

	kind := entity.ChangeModified
	if n.Op == "INSERT" {
		kind = entity.ChangeAdded
	}
	return entity.Change{Type: kind, Collection: c, Doc: doc}, nil
}
