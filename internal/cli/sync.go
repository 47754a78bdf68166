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

// NewSyncCommand creates the sync command group.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Inspect and drive reconciliation with the remote store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show connectivity and the outbox depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				st, err := s.Engine.Status(ctx)
				if err != nil {
					return err
				}
				return out.Success(st, fmt.Sprintf("online=%t pending=%d", st.Online, st.Pending))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drain",
		Short: "Send queued writes to the remote store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				sent, err := s.Engine.DrainOutbox(ctx)
				if err != nil {
					return err
				}
				st, err := s.Engine.Status(ctx)
				if err != nil {
					return err
				}
				resp := dto.DrainResponse{Sent: sent, Pending: st.Pending}
				return out.Success(resp, fmt.Sprintf("sent %d, %d still pending", resp.Sent, resp.Pending))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "resync [collection...]",
		Aliases: []string{"pull"},
		Short:   "Merge the remote copy of collections into the local store",
		Long: `Resync clears the hydration flags and reads each collection through the
reconciliation engine, merging the remote copy into the local store.
With no arguments every collection is pulled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			colls := entity.Collections
			if len(args) > 0 {
				colls = nil
				for _, a := range args {
					c, err := entity.ParseCollection(a)
					if err != nil {
						return err
					}
					colls = append(colls, c)
				}
			}
			return withSession(cmd, opts, func(ctx context.Context, _ *app.App, s *session.Session, out *OutputFormatter) error {
				s.Engine.Resync()
				counts := make(map[string]int, len(colls))
				for _, c := range colls {
					docs, err := s.Engine.FetchAndMerge(ctx, c)
					if err != nil {
						return err
					}
					counts[string(c)] = len(docs)
					out.VerboseLog("%s: %d records", c, len(docs))
				}
				st, err := s.Engine.Status(ctx)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"records": counts, "hydrated": st.Hydrated},
					fmt.Sprintf("pulled %d collections (online=%t)", len(colls), st.Online))
			})
		},
	})

	var limit int
	outbox := &cobra.Command{
		Use:   "outbox",
		Short: "List queued remote writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, till *app.App, _ *session.Session, out *OutputFormatter) error {
				entries, err := till.Outbox.Pending(ctx, limit)
				if err != nil {
					return err
				}
				return out.Success(dto.FromOutboxEntries(entries), "")
			})
		},
	}
	outbox.Flags().IntVar(&limit, "limit", 100, "maximum entries to list")
	cmd.AddCommand(outbox)

	return cmd
}
