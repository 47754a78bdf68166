package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tillsync/internal/app"
	"tillsync/internal/core/types"
	"tillsync/internal/domain/cashday"
	"tillsync/internal/session"
)

// NewDayCommand creates the cash-day command group.
func NewDayCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Open, close and reconcile cash days",
	}
	cmd.AddCommand(newDayOpenCommand(opts))
	cmd.AddCommand(newDayCloseCommand(opts))
	cmd.AddCommand(newDayReopenCommand(opts))
	cmd.AddCommand(newDayUnlockCommand(opts))
	cmd.AddCommand(newDayExpectedCommand(opts))
	cmd.AddCommand(newDayListCommand(opts))
	cmd.AddCommand(newDayExportCommand(opts))
	return cmd
}

func dayText(r *cashday.DailyCashRecord) string {
	text := fmt.Sprintf("%s %s float=%s", r.BusinessDate, r.Status, r.SessionFloat().StringFixed(2))
	if r.ExpectedCash != nil {
		text += " expected=" + r.ExpectedCash.StringFixed(2)
	}
	if r.CountedCash != nil {
		text += " counted=" + r.CountedCash.StringFixed(2)
	}
	if r.Variance != nil {
		text += " variance=" + r.Variance.StringFixed(2)
	}
	return text
}

func newDayOpenCommand(opts *RootOptions) *cobra.Command {
	var float, notes string
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open today's cash day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := types.NewMoneyFromString(float)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				rec, err := s.CashDay.OpenDay(ctx, cashday.OpenDayInput{OpeningFloat: amount, Notes: notes})
				if err != nil {
					return err
				}
				return out.Success(rec, dayText(rec))
			})
		},
	}
	cmd.Flags().StringVar(&float, "float", "0", "opening float")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func newDayCloseCommand(opts *RootOptions) *cobra.Command {
	var date, counted, notes string
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close an open cash day with the counted cash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := types.NewMoneyFromString(counted)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				rec, err := s.CashDay.CloseDay(ctx, cashday.CloseDayInput{BusinessDate: date, CountedCash: amount, Notes: notes})
				if err != nil {
					return err
				}
				return out.Success(rec, dayText(rec))
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "business date (default today)")
	cmd.Flags().StringVar(&counted, "counted", "", "counted cash")
	cmd.Flags().StringVar(&notes, "notes", "", "notes, required when the count differs")
	_ = cmd.MarkFlagRequired("counted")
	return cmd
}

func newDayReopenCommand(opts *RootOptions) *cobra.Command {
	var float, reason string
	cmd := &cobra.Command{
		Use:   "reopen <date>",
		Short: "Reopen a closed cash day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cashday.ReopenDayInput{BusinessDate: args[0], Reason: reason}
			if float != "" {
				amount, err := types.NewMoneyFromString(float)
				if err != nil {
					return err
				}
				in.ReopenFloat = &amount
			}
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				rec, err := s.CashDay.ReopenDay(ctx, in)
				if err != nil {
					return err
				}
				return out.Success(rec, dayText(rec))
			})
		},
	}
	cmd.Flags().StringVar(&float, "float", "", "float of the new session (default the counted cash)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason")
	return cmd
}

func newDayUnlockCommand(opts *RootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "unlock <date>",
		Short: "Record a manager override on a closed day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				rec, err := s.CashDay.RecordUnlock(ctx, cashday.UnlockInput{
					BusinessDate: args[0],
					Reason:       reason,
					PIN:          opts.PIN,
				})
				if err != nil {
					return err
				}
				return out.Success(rec, fmt.Sprintf("%s unlocked (%d unlocks)", rec.BusinessDate, len(rec.UnlockEvents)))
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newDayExpectedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "expected [date]",
		Short: "Show the cash expected in the drawer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				date := s.CashDay.Today()
				if len(args) == 1 {
					date = args[0]
				}
				amount, err := s.CashDay.CalculateExpectedCash(ctx, date)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"business_date": date, "expected_cash": amount},
					fmt.Sprintf("%s expected %s", date, amount.StringFixed(2)))
			})
		},
	}
}

func newDayListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cash days, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				records, err := s.CashDay.GetDailyCashRecords(ctx)
				if err != nil {
					return err
				}
				if out.Format == "json" {
					return out.Success(records, "")
				}
				for i := range records {
					fmt.Fprintln(out.Writer, dayText(&records[i]))
				}
				return nil
			})
		},
	}
}

func newDayExportCommand(opts *RootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every cash day to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := s.CashDay.ExportXLSX(ctx, f); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				return out.Success(map[string]string{"path": path}, "wrote "+path)
			})
		},
	}
	cmd.Flags().StringVarP(&path, "out", "o", "cash-days.xlsx", "output file")
	return cmd
}
