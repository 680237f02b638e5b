package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/noteflow/internal/errs"
	"github.com/kuitang/noteflow/internal/logutil"
	"github.com/kuitang/noteflow/internal/notes"
	"github.com/kuitang/noteflow/internal/obs"
)

func newNoteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Create, list, edit and search notes",
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.AddCommand(newNoteNewCommand(a))
	cmd.AddCommand(newNoteListCommand(a))
	cmd.AddCommand(newNoteShowCommand(a))
	cmd.AddCommand(newNoteEditCommand(a))
	cmd.AddCommand(newNoteAppendCommand(a))
	cmd.AddCommand(newNoteRmCommand(a))
	cmd.AddCommand(newNoteFavCommand(a))
	cmd.AddCommand(newNoteRecentCommand(a))
	cmd.AddCommand(newNoteSearchCommand(a))

	return cmd
}

// noteNewFlags holds the flags for note new
type noteNewFlags struct {
	title   string
	content string
	folder  string
	tags    []string
	color   string
}

func newNoteNewCommand(a *app) *cobra.Command {
	flags := &noteNewFlags{}

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a note",
		Long: `Create a note. Missing fields take defaults: title "Untitled", empty
content, no folder, no tags.

Examples:
  noteflow note new --title "Groceries" --content "- milk" --tag home
  noteflow note new --folder 01J9Z3... --color "#fef3c7"`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(e *env) error {
				n, err := e.store.CreateNote(e.ctx, notes.NewNote{
					Title:    flags.title,
					Content:  flags.content,
					FolderID: flags.folder,
					Tags:     nonEmpty(flags.tags),
					Color:    flags.color,
				})
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), n)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created note %s (%s)\n", n.ID, n.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.title, "title", "", "Note title")
	cmd.Flags().StringVar(&flags.content, "content", "", "Markdown content")
	cmd.Flags().StringVar(&flags.folder, "folder", "", "Folder id")
	cmd.Flags().StringSliceVar(&flags.tags, "tag", nil, "Tag (can be specified multiple times)")
	cmd.Flags().StringVar(&flags.color, "color", "", "Display color, e.g. #fef3c7")

	return cmd
}

// noteListFlags holds the flags for note list
type noteListFlags struct {
	folder    string
	root      bool
	tag       string
	favorites bool
}

func newNoteListCommand(a *app) *cobra.Command {
	flags := &noteListFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, most recently updated first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			return a.run(cmd, func(e *env) error {
				var list []notes.Note
				switch {
				case flags.root:
					list = e.store.NotesByFolder("")
				case flags.folder != "":
					if _, err := e.store.Folder(flags.folder); err != nil {
						return err
					}
					list = e.store.NotesByFolder(flags.folder)
				case flags.tag != "":
					list = e.store.NotesByTag(flags.tag)
				case flags.favorites:
					list = e.store.FavoriteNotes()
				default:
					list = e.store.Notes()
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				return writeNoteTable(cmd.OutOrStdout(), list, folderNames(e.store.Folders()))
			})
		},
	}

	cmd.Flags().StringVar(&flags.folder, "folder", "", "Only notes in this folder id")
	cmd.Flags().BoolVar(&flags.root, "root", false, "Only notes outside any folder")
	cmd.Flags().StringVar(&flags.tag, "tag", "", "Only notes with this tag")
	cmd.Flags().BoolVar(&flags.favorites, "favorites", false, "Only favorite notes")

	return cmd
}

// validate rejects more than one filter at a time.
func (f *noteListFlags) validate() error {
	var set []string
	if f.folder != "" {
		set = append(set, "--folder")
	}
	if f.root {
		set = append(set, "--root")
	}
	if f.tag != "" {
		set = append(set, "--tag")
	}
	if f.favorites {
		set = append(set, "--favorites")
	}
	if len(set) > 1 {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("%s cannot be combined", strings.Join(set, " and ")))
	}
	return nil
}

// noteShowFlags holds the flags for note show
type noteShowFlags struct {
	html  bool
	start int
	end   int
}

func newNoteShowCommand(a *app) *cobra.Command {
	flags := &noteShowFlags{}

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note",
		Long: `Print a note's metadata and numbered content, or render it as a
standalone HTML page with --html.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				n, err := e.store.Note(args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case flags.html:
					_, err = out.Write(notes.RenderHTML(n))
					return err
				case a.jsonOut:
					return writeJSON(out, n)
				}
				return writeNote(out, n, folderNames(e.store.Folders())[n.FolderID], flags.start, flags.end)
			})
		},
	}

	cmd.Flags().BoolVar(&flags.html, "html", false, "Render as an HTML page")
	cmd.Flags().IntVar(&flags.start, "from", 0, "First content line to print (1-based)")
	cmd.Flags().IntVar(&flags.end, "to", 0, "Last content line to print (0 = last)")

	return cmd
}

// noteEditFlags holds the flags for note edit
type noteEditFlags struct {
	title        string
	content      string
	folder       string
	tags         []string
	color        string
	clearDrawing bool
}

func newNoteEditCommand(a *app) *cobra.Command {
	flags := &noteEditFlags{}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a note's fields",
		Long: `Change a note's fields. Only flags that are given are applied; pass an
empty value to clear --folder, --color or --tag.

Examples:
  noteflow note edit 01J9Z3... --title "Renamed"
  noteflow note edit 01J9Z3... --folder ""      # move to the top level
  noteflow note edit 01J9Z3... --tag a --tag b  # replace tags`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := notes.Patch{}
			f := cmd.Flags()
			if f.Changed("title") {
				patch.Title = notes.String(flags.title)
			}
			if f.Changed("content") {
				patch.Content = notes.String(flags.content)
			}
			if f.Changed("folder") {
				patch.FolderID = notes.String(flags.folder)
			}
			if f.Changed("tag") {
				patch.Tags = nonEmpty(flags.tags)
			}
			if f.Changed("color") {
				patch.Color = notes.String(flags.color)
			}
			if flags.clearDrawing {
				patch.CanvasData = notes.String("")
			}

			return a.run(cmd, func(e *env) error {
				n, err := e.store.UpdateNote(e.ctx, args[0], patch, false)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), n)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated note %s\n", n.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.title, "title", "", "New title")
	cmd.Flags().StringVar(&flags.content, "content", "", "New Markdown content")
	cmd.Flags().StringVar(&flags.folder, "folder", "", "Folder id (empty for the top level)")
	cmd.Flags().StringSliceVar(&flags.tags, "tag", nil, "Replacement tags (can be specified multiple times)")
	cmd.Flags().StringVar(&flags.color, "color", "", "Display color (empty to clear)")
	cmd.Flags().BoolVar(&flags.clearDrawing, "clear-drawing", false, "Remove the note's drawing")

	return cmd
}

// nonEmpty drops blank entries and returns a non-nil slice.
func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func newNoteAppendCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "append <id> <line>...",
		Short: "Append lines to a note through the autosave path",
		Long: `Append each line to the note's content as if typed in an editor. Every
line schedules an autosave; only the final content is written, once, when
the command exits.`,
		Args: minArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				n, err := e.store.Note(args[0])
				if err != nil {
					return err
				}
				ctx := obs.WithNoteID(e.ctx, n.ID)

				content := n.Content
				for _, line := range args[1:] {
					if content != "" && !strings.HasSuffix(content, "\n") {
						content += "\n"
					}
					content += line
					e.store.AutoSave(n.ID, notes.Patch{Content: notes.String(content)})
				}
				if err := e.store.Flush(ctx); err != nil {
					return err
				}

				st := e.store.Status()
				obs.From(ctx).Info("autosave flushed", "lines", len(args)-1, "saving", st.Saving)
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %d line(s) to %s at %s\n", len(args)-1, n.ID, formatTime(st.LastSaved))
				return nil
			})
		},
	}
	return cmd
}

func newNoteRmCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a note",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				if _, err := e.store.Note(args[0]); err != nil {
					return err
				}
				if err := e.store.DeleteNote(e.ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s\n", args[0])
				return nil
			})
		},
	}
}

func newNoteFavCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fav <id>",
		Short: "Toggle a note's favorite flag",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				n, err := e.store.ToggleFavorite(e.ctx, args[0])
				if err != nil {
					return err
				}
				state := "no longer a favorite"
				if n.Favorite {
					state = "a favorite"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Note %s is %s\n", n.ID, state)
				return nil
			})
		},
	}
}

func newNoteRecentCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recently updated notes",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(e *env) error {
				list := e.store.RecentNotes(limit)
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), list)
				}
				return writeNoteTable(cmd.OutOrStdout(), list, folderNames(e.store.Folders()))
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", notes.DefaultRecentLimit, "Number of notes")
	return cmd
}

const maxLoggedQuery = 80

// searchPreviewLines is how much content a title or tag hit shows.
const searchPreviewLines = 2

// searchResult is one note search hit.
type searchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

func newNoteSearchCommand(a *app) *cobra.Command {
	var contextLines int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find notes by title, content or tag",
		Long: `Find notes whose title, content or any tag contains the query,
ignoring case. Content matches print the surrounding lines.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := strings.TrimSpace(args[0])
			if q == "" {
				return errs.New(errs.InvalidArgument, "search query must not be empty")
			}
			return a.run(cmd, func(e *env) error {
				e.store.SetSearchQuery(q)
				hits := e.store.FilteredNotes()

				results := make([]searchResult, 0, len(hits))
				for _, n := range hits {
					snippet, ok := notes.MatchSnippet(n.Content, q, contextLines)
					if !ok {
						snippet = notes.ContentPreview(n.Content, searchPreviewLines)
					}
					results = append(results, searchResult{ID: n.ID, Title: n.Title, Snippet: snippet})
				}
				obs.From(e.ctx).Debug("search", "query", logutil.TruncateForLog(q, maxLoggedQuery), "hits", len(results))

				out := cmd.OutOrStdout()
				if a.jsonOut {
					return writeJSON(out, results)
				}
				if len(results) == 0 {
					fmt.Fprintln(out, "No matches.")
					return nil
				}
				for i, r := range results {
					if i > 0 {
						fmt.Fprintln(out)
					}
					fmt.Fprintf(out, "%s  %s\n", r.ID, r.Title)
					if r.Snippet != "" {
						fmt.Fprintln(out, r.Snippet)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&contextLines, "context", "C", 1, "Lines of context around a content match")
	return cmd
}
