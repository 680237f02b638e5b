package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/noteflow/internal/errs"
	"github.com/kuitang/noteflow/internal/notes"
)

func newFolderCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage folders",
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.AddCommand(newFolderNewCommand(a))
	cmd.AddCommand(newFolderListCommand(a))
	cmd.AddCommand(newFolderRenameCommand(a))
	cmd.AddCommand(newFolderRmCommand(a))

	return cmd
}

func newFolderNewCommand(a *app) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a folder",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				f, err := e.store.CreateFolder(e.ctx, args[0], parent)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), f)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s (%s)\n", f.ID, f.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "Parent folder id")
	return cmd
}

func newFolderListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the folder tree with note counts",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(e *env) error {
				folders := e.store.Folders()
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), folders)
				}
				return writeFolderTree(cmd.OutOrStdout(), e.store, folders)
			})
		},
	}
}

// folderCounter is the part of the store writeFolderTree reads.
type folderCounter interface {
	NotesByFolder(folderID string) []notes.Note
}

// writeFolderTree prints folders indented under their parents. Folders whose
// parent no longer exists are printed at the top level.
func writeFolderTree(w io.Writer, store folderCounter, folders []notes.Folder) error {
	known := make(map[string]bool, len(folders))
	for _, f := range folders {
		known[f.ID] = true
	}
	children := make(map[string][]notes.Folder)
	for _, f := range folders {
		parent := f.ParentID
		if !known[parent] {
			parent = ""
		}
		children[parent] = append(children[parent], f)
	}
	for _, list := range children {
		slices.SortFunc(list, func(a, b notes.Folder) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	}

	fmt.Fprintf(w, "(root)  %d note(s)\n", len(store.NotesByFolder("")))
	var walk func(parent string, depth int)
	walk = func(parent string, depth int) {
		for _, f := range children[parent] {
			fmt.Fprintf(w, "%s%s  %s  %d note(s)\n", strings.Repeat("  ", depth), f.Name, f.ID, len(store.NotesByFolder(f.ID)))
			walk(f.ID, depth+1)
		}
	}
	walk("", 1)
	return nil
}

// folderRenameFlags holds the flags for folder rename
type folderRenameFlags struct {
	name   string
	parent string
}

func newFolderRenameCommand(a *app) *cobra.Command {
	flags := &folderRenameFlags{}

	cmd := &cobra.Command{
		Use:     "rename <id>",
		Aliases: []string{"mv"},
		Short:   "Rename or move a folder",
		Long: `Rename a folder with --name or move it under another folder with
--parent. Pass --parent "" to move it to the top level. A folder cannot be
moved under itself or one of its descendants.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := notes.FolderPatch{}
			if cmd.Flags().Changed("name") {
				patch.Name = notes.String(flags.name)
			}
			if cmd.Flags().Changed("parent") {
				patch.ParentID = notes.String(flags.parent)
			}
			if patch.Name == nil && patch.ParentID == nil {
				return errs.New(errs.InvalidArgument, "nothing to change: pass --name or --parent")
			}

			return a.run(cmd, func(e *env) error {
				f, err := e.store.UpdateFolder(e.ctx, args[0], patch)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), f)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated folder %s (%s)\n", f.ID, f.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "New name")
	cmd.Flags().StringVar(&flags.parent, "parent", "", "New parent folder id (empty for the top level)")
	return cmd
}

func newFolderRmCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a folder and move its notes to the top level",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				if _, err := e.store.Folder(args[0]); err != nil {
					return err
				}
				moved := len(e.store.NotesByFolder(args[0]))
				err := e.store.DeleteFolder(e.ctx, args[0])
				if errors.Is(err, notes.ErrCascadeIncomplete) {
					left := len(e.store.NotesByFolder(args[0]))
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: folder deleted but %d note(s) still reference it\n", left)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted folder %s; %d note(s) moved to the top level\n", args[0], moved)
				return nil
			})
		},
	}
}

func newTagsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag ever used, with note counts",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(e *env) error {
				tags := e.store.Tags()
				counts := make(map[string]int, len(tags))
				for _, t := range tags {
					counts[t] = len(e.store.NotesByTag(t))
				}

				out := cmd.OutOrStdout()
				if a.jsonOut {
					return writeJSON(out, counts)
				}
				if len(tags) == 0 {
					fmt.Fprintln(out, "No tags.")
					return nil
				}
				for _, t := range tags {
					fmt.Fprintf(out, "%s\t%d\n", t, counts[t])
				}
				return nil
			})
		},
	}
}
