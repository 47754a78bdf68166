package reconcile

import (
	"sync"
	"time"

	"tillsync/internal/core/entity"
)

// DefaultSubscriptionBuffer is the channel size used by OnCollectionChange.
const DefaultSubscriptionBuffer = 8

// Snapshot is the full local state of one collection after a change.
type Snapshot struct {
	Collection entity.Collection
	Docs       []entity.Document
	At         time.Time
}

// Subscription is a handle on a stream of snapshots.
// A slow reader loses the oldest pending snapshot, never the newest.
type Subscription struct {
	id     uint64
	ch     chan Snapshot
	filter map[entity.Collection]bool
	b      *Broadcaster
}

// C returns the snapshot channel. It is closed on Cancel or when the
// broadcaster shuts down.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// Cancel stops delivery and closes the channel. Safe to call twice.
func (s *Subscription) Cancel() {
	s.b.remove(s.id)
}

func (s *Subscription) wants(c entity.Collection) bool {
	return len(s.filter) == 0 || s.filter[c]
}

// Broadcaster fans collection snapshots out to subscribers.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	next   uint64
	closed bool
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a subscriber for the given collections (all when none given).
func (b *Broadcaster) Subscribe(buffer int, collections ...entity.Collection) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	s := &Subscription{
		id:     b.next,
		ch:     make(chan Snapshot, buffer),
		filter: make(map[entity.Collection]bool, len(collections)),
		b:      b,
	}
	for _, c := range collections {
		s.filter[c] = true
	}
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s.id] = s
	return s
}

// Wants reports whether any live subscriber listens to c.
func (b *Broadcaster) Wants(c entity.Collection) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.wants(c) {
			return true
		}
	}
	return false
}

// Publish delivers snap to every interested subscriber without blocking.
func (b *Broadcaster) Publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if !s.wants(snap.Collection) {
			continue
		}
		select {
		case s.ch <- snap:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- snap:
			default:
			}
		}
	}
}

// Close cancels every subscription. Later subscriptions are born closed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		close(s.ch)
		delete(b.subs, id)
	}
}
