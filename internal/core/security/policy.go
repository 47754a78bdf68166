package security

import (
	"time"

	"tillsync/internal/core/apperror"
)

// EditPolicy decides whether a sale, purchase or cash entry may still be
// changed. Windows are measured from CreatedAt on the device clock.
type EditPolicy struct {
	hard    time.Duration
	display time.Duration
	now     func() time.Time
}

// NewEditPolicy creates a policy. hard is enforced; display only drives
// the edit affordance shown to cashiers.
func NewEditPolicy(hard, display time.Duration, now func() time.Time) *EditPolicy {
	if display <= 0 || display > hard {
		display = hard
	}
	return &EditPolicy{hard: hard, display: display, now: now}
}

// CanModify returns EDIT_WINDOW_EXPIRED once the hard window has passed.
func (p *EditPolicy) CanModify(entity, id string, createdAt time.Time) error {
	if p.now().Sub(createdAt) > p.hard {
		return apperror.NewEditWindowExpired(entity, id, createdAt, p.hard)
	}
	return nil
}

// Editable reports whether the shorter display window is still open.
func (p *EditPolicy) Editable(createdAt time.Time) bool {
	return p.now().Sub(createdAt) <= p.display
}

// Window returns the enforced window.
func (p *EditPolicy) Window() time.Duration {
	return p.hard
}
