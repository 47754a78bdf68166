// Package cashday tracks one cash record per business date through
// open, close and reopen cycles and computes the variance between the cash
// the till should hold and the cash that was counted.
package cashday

import (
	"time"

	"tillsync/internal/core/entity"
	"tillsync/internal/core/types"
)

// Status of a daily cash record. A date without a record is unopened.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// CloseSession is an archived close of a day that was later reopened.
// ReopenedBy and ReopenedAt are empty for the first session of the day.
type CloseSession struct {
	ReopenedBy   string       `json:"reopened_by,omitempty"`
	ReopenedAt   *time.Time   `json:"reopened_at,omitempty"`
	ReopenFloat  types.Money  `json:"reopen_float"`
	ExpectedCash *types.Money `json:"expected_cash,omitempty"`
	CountedCash  *types.Money `json:"counted_cash,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	ClosedBy     string       `json:"closed_by"`
	ClosedAt     time.Time    `json:"closed_at"`
	AutoClosed   bool         `json:"auto_closed,omitempty"`
}

// UnlockEvent records manager override access to a closed day.
type UnlockEvent struct {
	UnlockedBy string    `json:"unlocked_by"`
	UnlockedAt time.Time `json:"unlocked_at"`
	Reason     string    `json:"reason"`
}

// DailyCashRecord is the cash state of one business date. Its ID is the
// business date, so every device converges on the same record.
//
// OpeningFloat, OpenedBy and OpenedAt describe the first session and are
// never changed. A reopened day runs on ReopenFloat from ReopenedAt.
type DailyCashRecord struct {
	entity.Base

	BusinessDate string `json:"business_date"`
	Status       Status `json:"status"`

	OpeningFloat types.Money `json:"opening_float"`
	OpenedBy     string      `json:"opened_by"`
	OpenedAt     time.Time   `json:"opened_at"`

	ReopenedBy  string       `json:"reopened_by,omitempty"`
	ReopenedAt  *time.Time   `json:"reopened_at,omitempty"`
	ReopenFloat *types.Money `json:"reopen_float,omitempty"`

	ExpectedCash *types.Money `json:"expected_cash,omitempty"`
	CountedCash  *types.Money `json:"counted_cash,omitempty"`
	Variance     *types.Money `json:"variance,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	ClosedBy     string       `json:"closed_by,omitempty"`
	ClosedAt     *time.Time   `json:"closed_at,omitempty"`
	AutoClosed   bool         `json:"auto_closed,omitempty"`

	CloseSessions []CloseSession `json:"close_sessions"`
	UnlockEvents  []UnlockEvent  `json:"unlock_events"`
}

func newRecord(date string, float types.Money, by string, now time.Time) *DailyCashRecord {
	base := entity.NewBase(now)
	base.ID = date
	return &DailyCashRecord{
		Base:          base,
		BusinessDate:  date,
		Status:        StatusOpen,
		OpeningFloat:  types.RoundCents(float),
		OpenedBy:      by,
		OpenedAt:      now,
		CloseSessions: []CloseSession{},
		UnlockEvents:  []UnlockEvent{},
	}
}

// IsOpen reports whether the day is taking cash.
func (r *DailyCashRecord) IsOpen() bool { return r.Status == StatusOpen }

// Reopened reports whether the live session is a reopen.
func (r *DailyCashRecord) Reopened() bool { return r.ReopenedAt != nil }

// SessionFloat is the float of the live session.
func (r *DailyCashRecord) SessionFloat() types.Money {
	if r.ReopenFloat != nil {
		return *r.ReopenFloat
	}
	return r.OpeningFloat
}

// SessionStart is when the live session began.
func (r *DailyCashRecord) SessionStart() time.Time {
	if r.ReopenedAt != nil {
		return *r.ReopenedAt
	}
	return r.OpenedAt
}

func (r *DailyCashRecord) close(expected types.Money, counted *types.Money, notes, by string, at time.Time) {
	r.Status = StatusClosed
	r.ExpectedCash = &expected
	r.CountedCash = counted
	r.Variance = nil
	if counted != nil {
		v := types.RoundCents(counted.Sub(expected))
		r.Variance = &v
	}
	r.Notes = notes
	r.ClosedBy = by
	r.ClosedAt = &at
}

// reopen archives the live session into CloseSessions and starts a new one.
func (r *DailyCashRecord) reopen(float types.Money, by string, at time.Time) {
	closedAt := at
	if r.ClosedAt != nil {
		closedAt = *r.ClosedAt
	}
	r.CloseSessions = append(r.CloseSessions, CloseSession{
		ReopenedBy:   r.ReopenedBy,
		ReopenedAt:   r.ReopenedAt,
		ReopenFloat:  r.SessionFloat(),
		ExpectedCash: r.ExpectedCash,
		CountedCash:  r.CountedCash,
		Notes:        r.Notes,
		ClosedBy:     r.ClosedBy,
		ClosedAt:     closedAt,
		AutoClosed:   r.AutoClosed,
	})

	float = types.RoundCents(float)
	r.Status = StatusOpen
	r.ReopenedBy = by
	r.ReopenedAt = &at
	r.ReopenFloat = &float
	r.ExpectedCash = nil
	r.CountedCash = nil
	r.Variance = nil
	r.Notes = ""
	r.ClosedBy = ""
	r.ClosedAt = nil
	r.AutoClosed = false
}
