package cli

import (
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kuitang/noteflow/internal/canvas"
	"github.com/kuitang/noteflow/internal/config"
	"github.com/kuitang/noteflow/internal/errs"
	"github.com/kuitang/noteflow/internal/obs"
)

func newCanvasCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canvas",
		Short: "Draw on a note's canvas",
		Long: `Draw on a note's canvas. Strokes are given as space-separated x,y points,
for example --stroke "10,10 120,40 200,200".`,
		RunE: func(c *cobra.Command, _ []string) error {
			return c.Help()
		},
	}

	cmd.AddCommand(newCanvasStrokeCommand(a))
	cmd.AddCommand(newCanvasClearCommand(a))
	cmd.AddCommand(newCanvasUndoDemoCommand(a))
	cmd.AddCommand(newCanvasExportCommand(a))
	cmd.AddCommand(newCanvasUploadsCommand(a))

	return cmd
}

// brushFlags are shared by the commands that draw strokes.
type brushFlags struct {
	strokes []string
	tool    string
	color   string
	width   int
}

func (f *brushFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.strokes, "stroke", nil, `Stroke points "x,y x,y ..." (can be specified multiple times)`)
	cmd.Flags().StringVar(&f.tool, "tool", canvas.Pen.String(), "Tool: pen or eraser")
	cmd.Flags().StringVar(&f.color, "color", canvas.DefaultColor, "Pen color, #rgb or #rrggbb")
	cmd.Flags().IntVar(&f.width, "width", canvas.DefaultWidth, fmt.Sprintf("Brush width, %d-%d", canvas.MinWidth, canvas.MaxWidth))
}

// parse validates the flags and returns one Stroke per --stroke.
func (f *brushFlags) parse() ([]canvas.Stroke, error) {
	tool, err := canvas.ParseTool(f.tool)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err.Error(), err)
	}
	if _, err := canvas.ParseHexColor(f.color); err != nil {
		return nil, errs.Wrap(errs.InvalidArgument, err.Error(), err)
	}

	strokes := make([]canvas.Stroke, 0, len(f.strokes))
	for _, raw := range f.strokes {
		points, err := parsePoints(raw)
		if err != nil {
			return nil, err
		}
		strokes = append(strokes, canvas.Stroke{Tool: tool, Color: f.color, Width: f.width, Points: points})
	}
	return strokes, nil
}

// parsePoints parses "x,y x,y ...".
func parsePoints(raw string) ([]image.Point, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, errs.New(errs.InvalidArgument, "stroke has no points")
	}
	points := make([]image.Point, 0, len(fields))
	for _, field := range fields {
		xs, ys, ok := strings.Cut(field, ",")
		if !ok {
			return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("point %q is not x,y", field))
		}
		x, errX := strconv.Atoi(strings.TrimSpace(xs))
		y, errY := strconv.Atoi(strings.TrimSpace(ys))
		if errX != nil || errY != nil {
			return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("point %q is not x,y", field))
		}
		points = append(points, image.Pt(x, y))
	}
	return points, nil
}

func canvasOptions(cfg *config.Config) canvas.Options {
	return canvas.Options{
		Width:      cfg.CanvasWidth,
		Height:     cfg.CanvasHeight,
		MaxHistory: cfg.CanvasMaxHistory,
	}
}

func newCanvasStrokeCommand(a *app) *cobra.Command {
	flags := &brushFlags{}

	cmd := &cobra.Command{
		Use:   "stroke <id>",
		Short: "Draw strokes on a note and save the drawing",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strokes, err := flags.parse()
			if err != nil {
				return err
			}
			if len(strokes) == 0 {
				return errs.New(errs.InvalidArgument, "pass at least one --stroke")
			}

			return a.run(cmd, func(e *env) error {
				ctx := obs.WithNoteID(e.ctx, args[0])
				session, err := e.store.OpenCanvas(ctx, args[0], canvasOptions(e.cfg))
				if err != nil {
					return err
				}
				for _, st := range strokes {
					if err := session.Draw(ctx, st); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Drew %d stroke(s) on %s\n", len(strokes), args[0])
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newCanvasClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <id>",
		Short: "Clear a note's drawing to the background color",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(e *env) error {
				ctx := obs.WithNoteID(e.ctx, args[0])
				session, err := e.store.OpenCanvas(ctx, args[0], canvasOptions(e.cfg))
				if err != nil {
					return err
				}
				if err := session.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared drawing on %s\n", args[0])
				return nil
			})
		},
	}
}

// undoDemoFlags holds the flags for canvas undo-demo
type undoDemoFlags struct {
	brushFlags
	undo int
	redo int
	out  string
}

func newCanvasUndoDemoCommand(a *app) *cobra.Command {
	flags := &undoDemoFlags{}

	cmd := &cobra.Command{
		Use:   "undo-demo <id>",
		Short: "Replay strokes, undo and redo on a scratch copy of a note's drawing",
		Long: `Open a scratch session seeded from the note's drawing, draw the given
strokes, then undo and redo the requested number of times. The history
position is printed after every step. Nothing is saved to the note; use
--out to write the final raster as a PNG.

Example:
  noteflow canvas undo-demo 01J9Z3... --stroke "0,0 50,50" --stroke "50,0 0,50" --undo 2 --redo 1 --out demo.png`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			strokes, err := flags.parse()
			if err != nil {
				return err
			}
			if flags.undo < 0 || flags.redo < 0 {
				return errs.New(errs.InvalidArgument, "--undo and --redo must not be negative")
			}

			return a.run(cmd, func(e *env) error {
				n, err := e.store.Note(args[0])
				if err != nil {
					return err
				}
				opts := canvasOptions(e.cfg)
				opts.Logger = obs.From(obs.WithNoteID(e.ctx, n.ID)).With("pkg", "canvas")
				session := canvas.NewSession(opts)
				if err := session.Seed(n.CanvasData); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				trace := func(op string) {
					fmt.Fprintf(out, "%-8s step %d/%d  undo=%t redo=%t\n",
						op, session.Step()+1, session.HistoryLen(), session.CanUndo(), session.CanRedo())
				}
				trace("seed")
				for _, st := range strokes {
					if err := session.Draw(e.ctx, st); err != nil {
						return err
					}
					trace("stroke")
				}
				for range flags.undo {
					if !session.Undo() {
						fmt.Fprintln(out, "undo     nothing to undo")
						break
					}
					trace("undo")
				}
				for range flags.redo {
					if !session.Redo() {
						fmt.Fprintln(out, "redo     nothing to redo")
						break
					}
					trace("redo")
				}

				if flags.out == "" {
					return nil
				}
				return writePNG(a.fs, flags.out, session, out)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&flags.undo, "undo", 0, "Number of undo steps after drawing")
	cmd.Flags().IntVar(&flags.redo, "redo", 0, "Number of redo steps after undoing")
	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "Write the final raster to this PNG file")
	return cmd
}

// pngSource is the part of a canvas session writePNG needs.
type pngSource interface {
	PNG() ([]byte, error)
}

func writePNG(fs afero.Fs, path string, src pngSource, out io.Writer) error {
	data, err := src.PNG()
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return errs.Wrap(errs.Unavailable, "failed to write "+path, err)
	}
	fmt.Fprintf(out, "Wrote %s (%d bytes)\n", path, len(data))
	return nil
}

// canvasExportFlags holds the flags for canvas export
type canvasExportFlags struct {
	out    string
	upload bool
}

func newCanvasExportCommand(a *app) *cobra.Command {
	flags := &canvasExportFlags{}

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a note's drawing as PNG and optionally upload it",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.out == "" && !flags.upload {
				return errs.New(errs.InvalidArgument, "pass --out, --upload or both")
			}

			return a.run(cmd, func(e *env) error {
				ctx := obs.WithNoteID(e.ctx, args[0])
				session, err := e.store.OpenCanvas(ctx, args[0], canvasOptions(e.cfg))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if flags.out != "" {
					if err := writePNG(a.fs, flags.out, session, out); err != nil {
						return err
					}
				}
				if !flags.upload {
					return nil
				}

				data, err := session.PNG()
				if err != nil {
					return err
				}
				objects, stop, err := a.objectStore(ctx)
				if err != nil {
					return err
				}
				defer stop()
				d, err := objects.UploadDrawing(ctx, args[0], data)
				if err != nil {
					return errs.Wrap(errs.Unavailable, "failed to upload drawing", err)
				}
				obs.From(ctx).Info("drawing uploaded", "key", d.Key, "bytes", d.Size)
				fmt.Fprintf(out, "Uploaded %s\n", d.URL)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&flags.out, "out", "o", "", "PNG file to write")
	cmd.Flags().BoolVar(&flags.upload, "upload", false, "Upload the PNG to object storage")
	return cmd
}

func newCanvasUploadsCommand(a *app) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "uploads <id>",
		Short: "List or delete a note's uploaded drawings",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := obs.WithNoteID(obs.WithCommand(cmd.Context(), cmd.CommandPath()), args[0])
			objects, stop, err := a.objectStore(ctx)
			if err != nil {
				return err
			}
			defer stop()

			out := cmd.OutOrStdout()
			if purge {
				removed, err := objects.DeleteDrawings(ctx, args[0])
				if err != nil {
					return errs.Wrap(errs.Unavailable, "failed to delete drawings", err)
				}
				fmt.Fprintf(out, "Deleted %d drawing(s)\n", removed)
				return nil
			}

			drawings, err := objects.ListDrawings(ctx, args[0])
			if err != nil {
				return errs.Wrap(errs.Unavailable, "failed to list drawings", err)
			}
			if a.jsonOut {
				return writeJSON(out, drawings)
			}
			if len(drawings) == 0 {
				fmt.Fprintln(out, "No uploaded drawings.")
				return nil
			}
			for _, d := range drawings {
				fmt.Fprintf(out, "%s\t%d\t%s\n", d.Key, d.Size, d.URL)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Delete every uploaded drawing of the note")
	return cmd
}
