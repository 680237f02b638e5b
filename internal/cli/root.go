// Package cli implements the noteflow command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kuitang/noteflow/internal/errs"
	"github.com/kuitang/noteflow/internal/obs"
)

// Option customizes NewRoot.
type Option func(*app)

// WithFs sets the filesystem used for archives and PNG exports.
func WithFs(fs afero.Fs) Option {
	return func(a *app) { a.fs = fs }
}

// NewRoot builds the noteflow command tree.
func NewRoot(opts ...Option) *cobra.Command {
	a := &app{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "noteflow",
		Short: "Notes, folders and drawings in a local encrypted database",
		Long: `noteflow keeps Markdown notes, folders and per-note drawings in a local
SQLite database (SQLCipher-encrypted when NOTEFLOW_MASTER_KEY is set).

Configuration comes from the environment, optionally seeded from a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errs.Wrap(errs.InvalidArgument, err.Error(), err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.EnvFile, "env-file", ".env", "Load environment variables from this file if it exists")
	pf.StringVar(&a.flags.DatabasePath, "db", "", "Database path (overrides NOTEFLOW_DB)")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides NOTEFLOW_LOG_LEVEL)")
	pf.BoolVar(&a.flags.NoS3, "no-s3", false, "Upload drawings to an in-process fake object store")
	pf.BoolVar(&a.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(newNoteCommand(a))
	root.AddCommand(newFolderCommand(a))
	root.AddCommand(newTagsCommand(a))
	root.AddCommand(newCanvasCommand(a))
	root.AddCommand(newArchiveCommand(a))
	root.AddCommand(newDoctorCommand(a))
	root.AddCommand(newConfigCommand(a))

	return root
}

// Execute runs the command line and returns the process exit status.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) int {
	root := NewRoot(opts...)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if !errs.IsCoded(err) {
		obs.From(ctx).Error("command failed", "error", err)
	}
	fmt.Fprintf(stderr, "error: %s\n", errs.MessageOf(err))
	return errs.ExitCode(errs.CodeOf(err))
}

// exactArgs is cobra.ExactArgs with a coded error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return errs.New(errs.InvalidArgument, fmt.Sprintf("%s takes %d argument(s), got %d", cmd.CommandPath(), n, len(args)))
		}
		return nil
	}
}

// minArgs is cobra.MinimumNArgs with a coded error.
func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return errs.New(errs.InvalidArgument, fmt.Sprintf("%s needs at least %d argument(s)", cmd.CommandPath(), n))
		}
		return nil
	}
}
