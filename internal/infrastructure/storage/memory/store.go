// Package memory provides an in-process remote store. It backs the "memory"
// remote driver for single-till demos and stands in for the remote in tests,
// with switches to simulate outages.
package memory

import (
	"context"
	"errors"
	"sync"

	"tillsync/internal/core/entity"
)

// ErrUnavailable is returned by every call while the store is set offline.
var ErrUnavailable = errors.New("memory remote: unavailable")

// Store is a thread-safe document store with the same write semantics as the
// real remotes: field-level merge and updatedAt-conditional upserts.
type Store struct {
	mu       sync.Mutex
	data     map[entity.Collection]map[string]entity.Document
	failWith error
	calls    map[string]int
	watchers []chan entity.Change
}

// New creates an empty store.
func New() *Store {
	return &Store{
		data:  make(map[entity.Collection]map[string]entity.Document),
		calls: make(map[string]int),
	}
}

// SetFailing makes every subsequent call fail with err. nil restores service.
func (s *Store) SetFailing(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// SetOffline is shorthand for SetFailing(ErrUnavailable) / SetFailing(nil).
func (s *Store) SetOffline(offline bool) {
	if offline {
		s.SetFailing(ErrUnavailable)
		return
	}
	s.SetFailing(nil)
}

// Calls returns how many times op ("scan", "upsert", "delete", "ping") was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.failWith
}

// Ping implements the remote store contract.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ping"); err != nil {
		return err
	}
	return ctx.Err()
}

// Scan returns the whole collection ordered by CreatedAt, ID.
func (s *Store) Scan(ctx context.Context, c entity.Collection) ([]entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("scan"); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs := make([]entity.Document, 0, len(s.data[c]))
	for _, d := range s.data[c] {
		docs = append(docs, d)
	}
	entity.SortDocuments(docs)
	return docs, nil
}

// Upsert merges docs into the collection. A document older than the stored
// copy is ignored, which makes replays no-ops.
func (s *Store) Upsert(ctx context.Context, c entity.Collection, docs []entity.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("upsert"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Validate the whole batch first; a batch applies fully or not at all.
	next := make([]entity.Document, 0, len(docs))
	for _, d := range docs {
		merged, changed, err := s.mergeLocked(c, d)
		if err != nil {
			return err
		}
		if changed {
			next = append(next, merged)
		}
	}
	for _, d := range next {
		s.putLocked(c, d)
	}
	return nil
}

// Delete removes a document. Deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, c entity.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("delete"); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.data[c][id]; !ok {
		return nil
	}
	delete(s.data[c], id)
	s.notifyLocked(entity.Change{Type: entity.ChangeRemoved, Collection: c, Doc: entity.Document{ID: id}})
	return nil
}

// Get returns one stored document (test helper).
func (s *Store) Get(c entity.Collection, id string) (entity.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[c][id]
	return d, ok
}

// Seed writes docs as-is, bypassing merge rules and fault injection.
// It simulates writes made by another till and notifies watchers.
func (s *Store) Seed(c entity.Collection, docs ...entity.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		d.RemoteSeen = false
		s.putLocked(c, d)
	}
}

// Remove deletes a document bypassing fault injection (another till deleting it).
func (s *Store) Remove(c entity.Collection, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[c], id)
	s.notifyLocked(entity.Change{Type: entity.ChangeRemoved, Collection: c, Doc: entity.Document{ID: id}})
}

// Watch delivers every change until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(entity.Change)) error {
	ch := make(chan entity.Change, 64)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change := <-ch:
			fn(change)
		}
	}
}

func (s *Store) mergeLocked(c entity.Collection, d entity.Document) (entity.Document, bool, error) {
	existing, ok := s.data[c][d.ID]
	if !ok {
		return d, true, nil
	}
	if d.UpdatedAt.Before(existing.UpdatedAt) {
		return existing, false, nil
	}
	data, err := entity.MergeFields(existing.Data, d.Data)
	if err != nil {
		return entity.Document{}, false, err
	}
	d.Data = data
	d.CreatedAt = existing.CreatedAt
	return d, true, nil
}

func (s *Store) putLocked(c entity.Collection, d entity.Document) {
	if s.data[c] == nil {
		s.data[c] = make(map[string]entity.Document)
	}
	_, existed := s.data[c][d.ID]
	d.RemoteSeen = false
	s.data[c][d.ID] = d

	change := entity.ChangeAdded
	if existed {
		change = entity.ChangeModified
	}
	s.notifyLocked(entity.Change{Type: change, Collection: c, Doc: d})
}

func (s *Store) notifyLocked(change entity.Change) {
	for _, w := range s.watchers {
		select {
		case w <- change:
		default:
			// Slow watcher; the next hydration catches up.
		}
	}
}
