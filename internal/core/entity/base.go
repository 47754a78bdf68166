// Package entity provides the record envelope shared by every synced collection
// and the convergence rules that decide which copy of a record survives.
package entity

import (
	"context"
	"time"

	"tillsync/internal/core/id"
)

// Record is implemented by every typed ledger record (goods, sales, debtors, cash days...).
type Record interface {
	RecordID() string
	Timestamps() (createdAt, updatedAt time.Time)
}

// Validatable is implemented by records that check their own invariants
// (without store access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// Base contains the fields every record carries.
type Base struct {
	// ID is client-generated (UUIDv7) or remote-assigned on first sync
	ID string `json:"id"`

	// CreatedAt is the real insertion time; edit windows are measured from it
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the sole tiebreaker when local and remote copies disagree
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewBase creates a Base with a generated ID stamped at now.
func NewBase(now time.Time) Base {
	return Base{
		ID:        id.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecordID implements Record.
func (b Base) RecordID() string { return b.ID }

// Timestamps implements Record.
func (b Base) Timestamps() (time.Time, time.Time) { return b.CreatedAt, b.UpdatedAt }

// Touch sets UpdatedAt to now as read from the device clock.
// The device clock is trusted here and in merges; a skewed till can lose or
// win conflicts it should not.
func (b *Base) Touch(now time.Time) {
	b.UpdatedAt = now
}
