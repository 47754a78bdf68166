// Package cli implements tillctl, the operator command line for a till.
// Commands open the local store directly and run inside a short-lived
// session, so they work with the API server stopped or the remote down.
package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"tillsync/internal/app"
	"tillsync/internal/config"
	appctx "tillsync/internal/core/context"
	"tillsync/internal/session"
	"tillsync/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string

	UserID string
	Name   string
	Role   string
	PIN    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tillctl",
		Short: "Operate a tillsync till from the shell",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true, // commands print their own errors
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "configuration file")
	cmd.PersistentFlags().StringVar(&opts.UserID, "user", "tillctl", "operator user id")
	cmd.PersistentFlags().StringVar(&opts.Name, "name", "", "operator display name")
	cmd.PersistentFlags().StringVar(&opts.Role, "role", appctx.RoleManager, "operator role (cashier|manager)")
	cmd.PersistentFlags().StringVar(&opts.PIN, "pin", "", "manager PIN")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewDayCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

// runFunc is the body of a command that needs a session.
type runFunc func(ctx context.Context, till *app.App, s *session.Session, out *OutputFormatter) error

// withSession assembles the till, logs the operator in and runs fn.
// The session ends when fn returns; queued writes stay in the outbox.
func withSession(cmd *cobra.Command, opts *RootOptions, fn runFunc) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return out.Error(fmt.Errorf("load configuration: %w", err))
	}
	log := logger.Nop()
	if opts.Verbose {
		if log, err = logger.New(logger.Config{Level: "debug", Development: true, OutputPaths: []string{"stderr"}}); err != nil {
			return out.Error(fmt.Errorf("init logger: %w", err))
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	till, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return out.Error(fmt.Errorf("open till: %w", err))
	}
	defer till.Close()

	s, err := till.Sessions.Login(ctx, session.LoginInput{
		UserID: opts.UserID,
		Name:   opts.Name,
		Role:   opts.Role,
		PIN:    opts.PIN,
	})
	if err != nil {
		return out.Error(err)
	}
	for _, d := range s.AutoClosed {
		out.VerboseLog("auto-closed stale day %s", d)
	}

	if err := fn(s.Context(ctx), till, s, out); err != nil {
		return out.Error(err)
	}
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		var exitErr *ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
			return ExitCommandError
		}
		return exitErr.Code
	}
	return ExitSuccess
}
