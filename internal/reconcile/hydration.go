package reconcile

import (
	"sync"

	"tillsync/internal/core/entity"
)

// HydrationState records which collections were already pulled from the
// remote during the current session. It lives on one Engine and dies with it.
type HydrationState struct {
	mu   sync.Mutex
	done map[entity.Collection]bool
}

// NewHydrationState creates an empty state.
func NewHydrationState() *HydrationState {
	return &HydrationState{done: make(map[entity.Collection]bool)}
}

// Done reports whether c was hydrated in this session.
func (h *HydrationState) Done(c entity.Collection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done[c]
}

// Mark flags c as hydrated.
func (h *HydrationState) Mark(c entity.Collection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done[c] = true
}

// Reset forgets every collection; the next read of each pulls again.
func (h *HydrationState) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.done)
}

// Hydrated lists hydrated collections in entity.Collections order.
func (h *HydrationState) Hydrated() []entity.Collection {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []entity.Collection
	for _, c := range entity.Collections {
		if h.done[c] {
			out = append(out, c)
		}
	}
	return out
}
