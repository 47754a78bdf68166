package cashday

import (
	"context"
	"slices"
	"strings"
	"time"

	"tillsync/internal/core/apperror"
	"tillsync/internal/core/clock"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/core/entity"
	"tillsync/internal/core/types"
	"tillsync/internal/core/validate"
	"tillsync/internal/domain"
	"tillsync/internal/domain/documents"
	"tillsync/internal/reconcile"
	"tillsync/pkg/logger"
)

// AutoCloseActor is recorded as closed_by on stale sessions.
const AutoCloseActor = "system:auto-close"

const autoCloseNote = "Closed automatically: the session was still open after its business date ended. Cash was not counted."

// CashLedger lists the cash entries dated in [from, to).
type CashLedger interface {
	CashEntriesBetween(ctx context.Context, from, to time.Time) ([]documents.CashEntry, error)
}

// PINVerifier checks a manager PIN.
type PINVerifier interface {
	Verify(pin string) error
}

// Config holds the collaborators of a Machine.
type Config struct {
	// Location defines the shop-local business date. Defaults to time.Local.
	Location *time.Location

	// PIN guards unlock events. Nil refuses every unlock.
	PIN PINVerifier

	Audit  domain.Auditor
	Logger *logger.Logger
}

// Machine runs the cash-day transitions of one session.
type Machine struct {
	engine  *reconcile.Engine
	clock   clock.Clock
	ledger  CashLedger
	records *reconcile.Collection[DailyCashRecord]
	loc     *time.Location
	pin     PINVerifier
	audit   domain.Auditor
	log     *logger.Logger
}

// New creates a Machine reading cash entries from ledger.
func New(engine *reconcile.Engine, ledger CashLedger, cfg Config) *Machine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return &Machine{
		engine:  engine,
		clock:   engine.Clock(),
		ledger:  ledger,
		records: reconcile.NewCollection[DailyCashRecord](engine, entity.DailyCashRecords),
		loc:     cfg.Location,
		pin:     cfg.PIN,
		audit:   cfg.Audit,
		log:     cfg.Logger.WithComponent("cashday"),
	}
}

// DeleteGuards keeps daily cash records locally even when the remote lost them.
func DeleteGuards() map[entity.Collection]entity.DeleteGuard {
	return map[entity.Collection]entity.DeleteGuard{
		entity.DailyCashRecords: entity.NeverDelete,
	}
}

// Today returns the current business date.
func (m *Machine) Today() string {
	return clock.BusinessDate(m.clock.Now(), m.loc)
}

// OpenDay opens today's business date with a non-negative float.
// It fails with STALE_SESSION while an earlier day is still open,
// ALREADY_OPEN when today is open and DAY_CLOSED when today was closed
// (use ReopenDay).
func (m *Machine) OpenDay(ctx context.Context, in OpenDayInput) (*DailyCashRecord, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := m.clock.Now()
	today := clock.BusinessDate(now, m.loc)
	var out *DailyCashRecord

	err := m.engine.Atomically(ctx, func(ctx context.Context) error {
		all, err := m.records.List(ctx)
		if err != nil {
			return err
		}
		if stale := staleDates(all, today); len(stale) > 0 {
			return apperror.NewStaleSession(stale)
		}
		for _, r := range all {
			if r.BusinessDate != today {
				continue
			}
			if r.IsOpen() {
				return apperror.NewAlreadyOpen(today)
			}
			return apperror.NewDayClosed(today)
		}

		rec := newRecord(today, in.OpeningFloat, appctx.ActorName(ctx), now)
		rec.Notes = strings.TrimSpace(in.Notes)
		if err := m.records.Put(ctx, *rec); err != nil {
			return err
		}
		out = rec
		return m.record(ctx, rec.ID, entity.AuditOpenDay, map[string]any{
			"opening_float": rec.OpeningFloat.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.WithContext(ctx).Infow("day opened",
		"business_date", today,
		"opening_float", out.OpeningFloat.StringFixed(2))
	return out, nil
}

// CloseDay closes an open day against the counted cash. A variance is only
// accepted with a note explaining it.
func (m *Machine) CloseDay(ctx context.Context, in CloseDayInput) (*DailyCashRecord, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := m.clock.Now()
	date := in.BusinessDate
	if date == "" {
		date = clock.BusinessDate(now, m.loc)
	}
	notes := strings.TrimSpace(in.Notes)
	counted := types.RoundCents(in.CountedCash)
	var out *DailyCashRecord

	err := m.engine.Atomically(ctx, func(ctx context.Context) error {
		rec, err := m.records.Get(ctx, date)
		if apperror.IsNotFound(err) {
			return apperror.NewNotOpen(date)
		}
		if err != nil {
			return err
		}
		if !rec.IsOpen() {
			return apperror.NewNotOpen(date)
		}

		expected, err := m.expected(ctx, &rec, now)
		if err != nil {
			return err
		}
		if !counted.Equal(expected) && notes == "" {
			return apperror.NewValidation("a note is required when counted cash differs from expected cash").
				WithDetail("field", "notes").
				WithDetail("expected_cash", expected.StringFixed(2)).
				WithDetail("counted_cash", counted.StringFixed(2)).
				WithDetail("variance", counted.Sub(expected).StringFixed(2))
		}

		rec.close(expected, &counted, notes, appctx.ActorName(ctx), now)
		rec.Touch(now)
		if err := m.records.Put(ctx, rec); err != nil {
			return err
		}
		out = &rec
		return m.record(ctx, rec.ID, entity.AuditCloseDay, map[string]any{
			"expected_cash": expected.StringFixed(2),
			"counted_cash":  counted.StringFixed(2),
			"notes":         notes,
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.WithContext(ctx).Infow("day closed",
		"business_date", date,
		"expected_cash", out.ExpectedCash.StringFixed(2),
		"counted_cash", counted.StringFixed(2),
		"variance", out.Variance.StringFixed(2))
	return out, nil
}

// ReopenDay reopens a closed day. The live close is archived into
// close_sessions and a new session starts on the reopen float, which
// defaults to the cash counted at the close being archived.
func (m *Machine) ReopenDay(ctx context.Context, in ReopenDayInput) (*DailyCashRecord, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := m.clock.Now()
	var out *DailyCashRecord

	err := m.engine.Atomically(ctx, func(ctx context.Context) error {
		rec, err := m.records.Get(ctx, in.BusinessDate)
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("daily cash record", in.BusinessDate)
		}
		if err != nil {
			return err
		}
		if rec.Status != StatusClosed {
			return apperror.NewNotClosed(in.BusinessDate)
		}

		float := reopenFloat(&rec, in.ReopenFloat)
		rec.reopen(float, appctx.ActorName(ctx), now)
		rec.Touch(now)
		if err := m.records.Put(ctx, rec); err != nil {
			return err
		}
		out = &rec
		return m.record(ctx, rec.ID, entity.AuditReopenDay, map[string]any{
			"reopen_float": float.StringFixed(2),
			"reason":       strings.TrimSpace(in.Reason),
			"session":      len(rec.CloseSessions),
		})
	})
	if err != nil {
		return nil, err
	}

	m.log.WithContext(ctx).Infow("day reopened",
		"business_date", in.BusinessDate,
		"reopen_float", out.ReopenFloat.StringFixed(2),
		"archived_sessions", len(out.CloseSessions))
	return out, nil
}

func reopenFloat(rec *DailyCashRecord, requested *types.Money) types.Money {
	switch {
	case requested != nil:
		return *requested
	case rec.CountedCash != nil:
		return *rec.CountedCash
	case rec.ExpectedCash != nil:
		return *rec.ExpectedCash
	}
	return rec.SessionFloat()
}

// CalculateExpectedCash returns the float of the live session plus cash in
// minus cash out since the session started. An open day is measured up to
// now, a closed one up to its close. Nothing is written.
func (m *Machine) CalculateExpectedCash(ctx context.Context, date string) (types.Money, error) {
	rec, err := m.records.Get(ctx, date)
	if apperror.IsNotFound(err) {
		return types.Money{}, apperror.NewNotOpen(date)
	}
	if err != nil {
		return types.Money{}, err
	}
	return m.expected(ctx, &rec, m.clock.Now())
}

// expected sums the session's cash entries in [SessionStart, end) where end
// is the earliest of now, the close time and the end of the business date.
func (m *Machine) expected(ctx context.Context, rec *DailyCashRecord, now time.Time) (types.Money, error) {
	dayStart, dayEnd, err := clock.DayBounds(rec.BusinessDate, m.loc)
	if err != nil {
		return types.Money{}, apperror.NewValidation("invalid business date").WithCause(err)
	}
	from := rec.SessionStart()
	if from.Before(dayStart) {
		from = dayStart
	}
	to := dayEnd
	if now.Before(to) {
		to = now
	}
	if !rec.IsOpen() && rec.ClosedAt != nil && rec.ClosedAt.Before(to) {
		to = *rec.ClosedAt
	}
	return m.sumSince(ctx, rec.SessionFloat(), from, to)
}

func (m *Machine) sumSince(ctx context.Context, float types.Money, from, to time.Time) (types.Money, error) {
	total := float
	if !from.Before(to) {
		return types.RoundCents(total), nil
	}
	entries, err := m.ledger.CashEntriesBetween(ctx, from, to)
	if err != nil {
		return types.Money{}, err
	}
	for _, e := range entries {
		total = total.Add(e.Signed())
	}
	return types.RoundCents(total), nil
}

// GetDailyCashRecords returns every record, newest business date first.
func (m *Machine) GetDailyCashRecords(ctx context.Context) ([]DailyCashRecord, error) {
	all, err := m.records.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(all, func(a, b DailyCashRecord) int {
		return strings.Compare(b.BusinessDate, a.BusinessDate)
	})
	return all, nil
}

// GetDailyCashRecord returns the record of one business date.
func (m *Machine) GetDailyCashRecord(ctx context.Context, date string) (*DailyCashRecord, error) {
	rec, err := m.records.Get(ctx, date)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("daily cash record", date)
		}
		return nil, err
	}
	return &rec, nil
}

// AutoCloseStaleOpenSessions closes every record still open from an earlier
// business date. Expected cash is measured to the end of that date; counted
// cash stays unset and a note flags the record for review.
func (m *Machine) AutoCloseStaleOpenSessions(ctx context.Context) ([]DailyCashRecord, error) {
	now := m.clock.Now()
	today := clock.BusinessDate(now, m.loc)
	var closed []DailyCashRecord

	err := m.engine.Atomically(ctx, func(ctx context.Context) error {
		all, err := m.records.List(ctx)
		if err != nil {
			return err
		}
		for _, rec := range all {
			if !rec.IsOpen() || rec.BusinessDate >= today {
				continue
			}
			_, dayEnd, err := clock.DayBounds(rec.BusinessDate, m.loc)
			if err != nil {
				return apperror.NewValidation("invalid business date").WithCause(err)
			}
			expected, err := m.expected(ctx, &rec, dayEnd)
			if err != nil {
				return err
			}

			rec.close(expected, nil, joinNotes(rec.Notes, autoCloseNote), AutoCloseActor, now)
			rec.AutoClosed = true
			rec.Touch(now)
			if err := m.records.Put(ctx, rec); err != nil {
				return err
			}
			if err := m.record(ctx, rec.ID, entity.AuditAutoClose, map[string]any{
				"expected_cash": expected.StringFixed(2),
			}); err != nil {
				return err
			}
			closed = append(closed, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, rec := range closed {
		m.log.WithContext(ctx).Warnw("stale cash day closed automatically",
			"business_date", rec.BusinessDate,
			"expected_cash", rec.ExpectedCash.StringFixed(2))
	}
	return closed, nil
}

// RecordUnlock appends a manager override to a closed day after checking
// the manager PIN.
func (m *Machine) RecordUnlock(ctx context.Context, in UnlockInput) (*DailyCashRecord, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if m.pin == nil {
		return nil, apperror.NewForbidden("manager PIN is not configured")
	}
	if err := m.pin.Verify(in.PIN); err != nil {
		m.log.WithContext(ctx).Warnw("unlock refused", "business_date", in.BusinessDate)
		return nil, err
	}
	now := m.clock.Now()
	var out *DailyCashRecord

	err := m.engine.Atomically(ctx, func(ctx context.Context) error {
		rec, err := m.records.Get(ctx, in.BusinessDate)
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("daily cash record", in.BusinessDate)
		}
		if err != nil {
			return err
		}
		if rec.Status != StatusClosed {
			return apperror.NewNotClosed(in.BusinessDate)
		}

		ev := UnlockEvent{
			UnlockedBy: appctx.ActorName(ctx),
			UnlockedAt: now,
			Reason:     strings.TrimSpace(in.Reason),
		}
		rec.UnlockEvents = append(rec.UnlockEvents, ev)
		rec.Touch(now)
		if err := m.records.Put(ctx, rec); err != nil {
			return err
		}
		out = &rec
		return m.record(ctx, rec.ID, entity.AuditUnlock, ev)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Machine) record(ctx context.Context, id string, action entity.AuditAction, payload any) error {
	if m.audit == nil {
		return nil
	}
	return m.audit.Record(ctx, entity.DailyCashRecords, id, action, payload)
}

func staleDates(all []DailyCashRecord, today string) []string {
	var out []string
	for _, r := range all {
		if r.IsOpen() && r.BusinessDate < today {
			out = append(out, r.BusinessDate)
		}
	}
	slices.Sort(out)
	return out
}

func joinNotes(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
