package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tillsync/internal/app"
	"tillsync/internal/core/entity"
	"tillsync/internal/infrastructure/http/v1/dto"
	"tillsync/internal/session"
)

// NewAuditCommand creates the audit command group.
func NewAuditCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read and check the tamper-evident audit chain",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Recompute every hash link of the audit chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, till *app.App, _ *session.Session, out *OutputFormatter) error {
				res, err := till.Audit.Verify(ctx)
				if err != nil {
					return err
				}
				resp := dto.FromVerifyResult(res)
				if !resp.Intact {
					_ = out.Success(resp, fmt.Sprintf("chain BROKEN at seq %d (%d links checked)", resp.BrokenAt, resp.Checked))
					return &ExitError{Code: ExitFailure, Message: "audit chain broken"}
				}
				return out.Success(resp, fmt.Sprintf("chain intact (%d links checked)", resp.Checked))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history <collection> <id>",
		Short: "Show the audit entries of one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := entity.ParseCollection(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, till *app.App, _ *session.Session, out *OutputFormatter) error {
				entries, err := till.Audit.History(ctx, c, args[1])
				if err != nil {
					return err
				}
				return out.Success(dto.FromAuditEntries(entries), "")
			})
		},
	})

	return cmd
}
