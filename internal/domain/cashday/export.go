package cashday

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"tillsync/internal/core/types"
)

const (
	daysSheet     = "Days"
	sessionsSheet = "Close sessions"
	unlocksSheet  = "Unlocks"
)

var (
	daysHeader = []any{
		"Business date", "Status", "Opening float", "Opened by", "Opened at",
		"Session float", "Expected cash", "Counted cash", "Variance",
		"Closed by", "Closed at", "Auto closed", "Reopens", "Notes",
	}
	sessionsHeader = []any{
		"Business date", "Session", "Reopened by", "Reopened at", "Float",
		"Expected cash", "Counted cash", "Closed by", "Closed at", "Auto closed", "Notes",
	}
	unlocksHeader = []any{"Business date", "Unlocked by", "Unlocked at", "Reason"}
)

// ExportXLSX writes every daily cash record as a spreadsheet: one row per
// day, one per archived close session and one per unlock event.
func (m *Machine) ExportXLSX(ctx context.Context, w io.Writer) error {
	records, err := m.GetDailyCashRecords(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", daysSheet); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	for _, name := range []string{sessionsSheet, unlocksSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	days := [][]any{daysHeader}
	sessions := [][]any{sessionsHeader}
	unlocks := [][]any{unlocksHeader}
	for _, r := range records {
		days = append(days, []any{
			r.BusinessDate, string(r.Status), money(&r.OpeningFloat), r.OpenedBy, m.stamp(&r.OpenedAt),
			money(ptr(r.SessionFloat())), money(r.ExpectedCash), money(r.CountedCash), money(r.Variance),
			r.ClosedBy, m.stamp(r.ClosedAt), r.AutoClosed, len(r.CloseSessions), r.Notes,
		})
		for i, s := range r.CloseSessions {
			sessions = append(sessions, []any{
				r.BusinessDate, i + 1, s.ReopenedBy, m.stamp(s.ReopenedAt), money(&s.ReopenFloat),
				money(s.ExpectedCash), money(s.CountedCash), s.ClosedBy, m.stamp(&s.ClosedAt), s.AutoClosed, s.Notes,
			})
		}
		for _, u := range r.UnlockEvents {
			unlocks = append(unlocks, []any{r.BusinessDate, u.UnlockedBy, m.stamp(&u.UnlockedAt), u.Reason})
		}
	}

	for sheet, rows := range map[string][][]any{daysSheet: days, sessionsSheet: sessions, unlocksSheet: unlocks} {
		if err := writeRows(f, sheet, rows); err != nil {
			return fmt.Errorf("export %s: %w", sheet, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// money renders an amount with two decimals; unset amounts stay blank.
func money(m *types.Money) string {
	if m == nil {
		return ""
	}
	return m.StringFixed(2)
}

func (m *Machine) stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(m.loc).Format("2006-01-02 15:04:05")
}

func ptr[T any](v T) *T { return &v }
