package reconcile

import (
	"context"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
)

// DrainOutbox pushes queued single-record writes in enqueue order and
// returns how many the remote confirmed.
//
// Only one drain runs at a time. A call that arrives during a drain
// returns immediately and makes the running drain take one more pass.
// A failed entry stays queued with its attempt count bumped; later
// entries for the same record wait for the next drain so a record's
// writes never reach the remote out of order.
func (e *Engine) DrainOutbox(ctx context.Context) (int, error) {
	if !e.available() {
		return 0, apperror.NewRemoteUnavailable("drain", errOffline)
	}

	total := 0
	for {
		if !e.draining.CompareAndSwap(false, true) {
			e.drainAgain.Store(true)
			return total, nil
		}
		e.drainAgain.Store(false)
		n, err := e.drainPass(ctx)
		total += n
		e.draining.Store(false)

		if err != nil || !e.drainAgain.Load() {
			return total, err
		}
	}
}

func (e *Engine) drainPass(ctx context.Context) (int, error) {
	entries, err := e.outbox.Pending(ctx, 0)
	if err != nil {
		return 0, err
	}

	log := e.log.WithContext(ctx)
	blocked := make(map[string]bool)
	pushed := 0

	for _, entry := range entries {
		key := string(entry.Collection) + "/" + entry.RecordID
		if blocked[key] {
			continue
		}
		if !e.available() {
			break
		}

		if err := e.send(ctx, entry); err != nil {
			blocked[key] = true
			log.Warnw("outbox entry not delivered",
				"collection", entry.Collection, "record_id", entry.RecordID,
				"operation", entry.Op, "attempts", entry.Attempts+1, "error", err)
			if err := e.outbox.MarkFailed(ctx, entry.Seq, err.Error()); err != nil {
				return pushed, err
			}
			// One dead call says little; a dead ping means the rest would time out too.
			if e.call(ctx, "ping", e.remote.Ping) != nil {
				break
			}
			continue
		}

		err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := e.outbox.Remove(ctx, entry.Seq); err != nil {
				return err
			}
			if entry.Op == entity.OpUpsert {
				return e.docs.MarkRemoteSeen(ctx, entry.Collection, entry.RecordID)
			}
			return nil
		})
		if err != nil {
			return pushed, err
		}
		pushed++
	}

	if pushed > 0 {
		log.Debugw("outbox drained", "delivered", pushed, "queued", len(entries)-pushed)
	}
	return pushed, nil
}

func (e *Engine) send(ctx context.Context, entry entity.OutboxEntry) error {
	switch entry.Op {
	case entity.OpDelete:
		return e.call(ctx, "delete", func(ctx context.Context) error {
			return e.remote.Delete(ctx, entry.Collection, entry.RecordID)
		})
	default:
		return e.call(ctx, "upsert", func(ctx context.Context) error {
			return e.remote.Upsert(ctx, entry.Collection, []entity.Document{entry.Payload})
		})
	}
}
