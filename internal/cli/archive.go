package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kuitang/noteflow/internal/archive"
)

func newArchiveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export notes to Markdown files or import them back",
		Long: `Export writes one Markdown file per note with a YAML front matter header.
Folders become directories and drawings are written as PNG files next to
their notes. Import reads such a directory back; imported notes get new ids.`,
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export <dir>",
		Short: "Export every note and folder into dir",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				report, err := archive.New(a.fs).Export(e.ctx, args[0], e.store)
				if err != nil {
					return err
				}
				return writeReport(cmd.OutOrStdout(), a.jsonOut, "Exported", report)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <dir>",
		Short: "Import every note under dir",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				report, err := archive.New(a.fs).Import(e.ctx, args[0], e.store)
				if err != nil {
					return err
				}
				return writeReport(cmd.OutOrStdout(), a.jsonOut, "Imported", report)
			})
		},
	})

	return cmd
}

func writeReport(w io.Writer, jsonOut bool, verb string, r archive.Report) error {
	if jsonOut {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "%s %d note(s), %d folder(s), %d drawing(s)\n", verb, r.Notes, r.Folders, r.Drawings)
	for _, path := range r.Skipped {
		fmt.Fprintf(w, "skipped %s\n", path)
	}
	return nil
}
