package reconcile

import (
	"context"
	"errors"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/entity"
)

// ApplyRemoteChange merges one remote event into the local copy using the
// same rules as hydration, then publishes the collection. It only touches
// the one record, so it is safe to interleave with any other operation.
func (e *Engine) ApplyRemoteChange(ctx context.Context, change entity.Change) error {
	c := change.Collection
	id := change.Doc.ID
	if id == "" {
		return apperror.NewValidation("remote change without record id")
	}

	requeued := false
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		local, err := e.docs.Get(ctx, c, id)
		exists := err == nil
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}

		if change.Type == entity.ChangeRemoved {
			if !exists || !local.RemoteSeen {
				return nil
			}
			if guard := e.cfg.DeleteGuards[c]; guard == nil || guard(local) {
				return e.docs.Delete(ctx, c, id)
			}
			local.RemoteSeen = false
			if err := e.docs.Upsert(ctx, c, local); err != nil {
				return err
			}
			if _, err := e.outbox.Enqueue(ctx, entity.OutboxEntry{
				Op:         entity.OpUpsert,
				Collection: c,
				RecordID:   id,
				Payload:    local,
				EnqueuedAt: e.clock.Now(),
			}); err != nil {
				return err
			}
			requeued = true
			return nil
		}

		deleting, err := e.pendingDeletes(ctx, c)
		if err != nil {
			return err
		}
		if deleting[id] {
			return nil
		}

		incoming := change.Doc
		incoming.RemoteSeen = true
		if exists && entity.Resolve(local, incoming) == entity.SideLocal {
			if local.RemoteSeen {
				return nil
			}
			return e.docs.MarkRemoteSeen(ctx, c, id)
		}
		return e.docs.Upsert(ctx, c, incoming)
	})
	if err != nil {
		return err
	}

	e.publish(ctx, c)
	if requeued {
		e.log.WithContext(ctx).Infow("remote deletion refused by guard; record re-queued",
			"collection", c, "record_id", id)
		e.kick(ctx)
	}
	return nil
}

// Watch feeds remote changes into ApplyRemoteChange until ctx is done.
// A change that cannot be applied is logged; the next hydration repairs it.
func (e *Engine) Watch(ctx context.Context, feed ChangeFeed) error {
	err := feed.Watch(ctx, func(change entity.Change) {
		if err := e.ApplyRemoteChange(ctx, change); err != nil {
			e.log.WithContext(ctx).Errorw("remote change not applied",
				"collection", change.Collection, "record_id", change.Doc.ID,
				"change", change.Type, "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
