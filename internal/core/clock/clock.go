// Package clock abstracts the wall clock used for record timestamps, edit windows
// and business-date resolution.
//
// Timestamps are truncated to milliseconds so that a value written locally,
// round-tripped through JSON and the remote store, compares equal to itself.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

// Now returns the current UTC time at millisecond precision.
func (System) Now() time.Time {
	return Normalize(time.Now())
}

// Normalize converts t to UTC at millisecond precision.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Manual is a settable clock for tests and replays.
//
// Thread-safety: all methods are safe for concurrent use.
type Manual struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewManual creates a clock fixed at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: Normalize(start)}
}

// NewStepping creates a clock that advances by step after every Now call,
// so consecutive writes get strictly increasing timestamps.
func NewStepping(start time.Time, step time.Duration) *Manual {
	return &Manual{now: Normalize(start), step: step}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.now
	m.now = m.now.Add(m.step)
	return t
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = Normalize(t)
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// BusinessDate returns the shop-local calendar date of t as YYYY-MM-DD.
func BusinessDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// DateLayout is the key format of a business date.
const DateLayout = "2006-01-02"

// DayBounds returns the [start, end) instants of a business date in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return d.UTC(), d.AddDate(0, 0, 1).UTC(), nil
}
