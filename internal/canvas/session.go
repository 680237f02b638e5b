package canvas

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math"

	"github.com/kuitang/noteflow/internal/obs"
)

const (
	// DefaultWidthPx and DefaultHeightPx size a session when Options leaves
	// the surface size unset.
	DefaultWidthPx  = 800
	DefaultHeightPx = 600
)

// SaveFunc receives the encoded raster after every committed stroke and
// every clear.
type SaveFunc func(ctx context.Context, data string) error

// Options configures a Session. Zero values take defaults.
type Options struct {
	Width      int
	Height     int
	MaxHistory int
	Codec      Codec
	Save       SaveFunc
	Logger     *slog.Logger
}

// Stroke is one pointer-down to pointer-up gesture.
type Stroke struct {
	Tool   Tool
	Color  string
	Width  int
	Points []image.Point
}

// brush is the tool configuration captured when a stroke starts.
type brush struct {
	tool  Tool
	color color.NRGBA
	width int
}

// Session is one open drawing surface with its undo/redo history.
// A Session is not safe for concurrent use.
type Session struct {
	img   *image.NRGBA
	hist  *History
	codec Codec
	save  SaveFunc
	log   *slog.Logger

	tool  Tool
	color color.NRGBA
	width int

	drawing bool
	active  brush
	last    image.Point
}

// NewSession allocates a transparent surface. Call Seed before drawing.
func NewSession(opts Options) *Session {
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = DefaultWidthPx
	}
	if h <= 0 {
		h = DefaultHeightPx
	}
	codec := opts.Codec
	if codec == nil {
		codec = DataURLCodec{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = obs.Pkg("canvas")
	}
	defaultColor, _ := ParseHexColor(DefaultColor)
	return &Session{
		img:   image.NewNRGBA(image.Rect(0, 0, w, h)),
		hist:  NewHistory(opts.MaxHistory),
		codec: codec,
		save:  opts.Save,
		log:   logger,
		tool:  Pen,
		color: defaultColor,
		width: DefaultWidth,
	}
}

// Seed starts the history. A non-empty initial raster is drawn onto the
// surface; otherwise, or if initial cannot be decoded, the surface is filled
// with the background. The result becomes entry 0.
func (s *Session) Seed(initial string) error {
	s.hist.Reset()
	s.drawing = false
	if initial != "" {
		s.restore(initial)
	} else {
		s.fill(Background)
	}
	snap, err := s.codec.Encode(s.img)
	if err != nil {
		return fmt.Errorf("seed canvas: %w", err)
	}
	s.hist.Push(snap)
	return nil
}

// PointerDown starts a stroke at p with the current tool, color and width.
func (s *Session) PointerDown(p image.Point) {
	s.drawing = true
	s.active = brush{tool: s.tool, color: s.color, width: s.width}
	s.last = p
}

// PointerMove extends the stroke in progress to p. Moves without a pressed
// pointer are ignored.
func (s *Session) PointerMove(p image.Point) {
	if !s.drawing {
		return
	}
	s.segment(s.last, p)
	s.last = p
}

// PointerUp ends the stroke in progress and commits it.
func (s *Session) PointerUp(ctx context.Context) error {
	if !s.drawing {
		return nil
	}
	s.drawing = false
	return s.CommitStroke(ctx)
}

// PointerLeave is PointerUp: leaving the surface ends the stroke.
func (s *Session) PointerLeave(ctx context.Context) error {
	return s.PointerUp(ctx)
}

// Draw replays a whole gesture and commits it.
func (s *Session) Draw(ctx context.Context, st Stroke) error {
	if len(st.Points) == 0 {
		return nil
	}
	prevTool, prevColor, prevWidth := s.tool, s.color, s.width
	defer func() { s.tool, s.color, s.width = prevTool, prevColor, prevWidth }()

	s.tool = st.Tool
	if st.Color != "" {
		if err := s.SetColor(st.Color); err != nil {
			return err
		}
	}
	if st.Width > 0 {
		s.SetWidth(st.Width)
	}

	s.PointerDown(st.Points[0])
	for _, p := range st.Points[1:] {
		s.PointerMove(p)
	}
	return s.PointerUp(ctx)
}

// CommitStroke records the current surface as a new history entry, dropping
// any redo entries, and hands it to the save callback. The entry is kept
// even when saving fails.
func (s *Session) CommitStroke(ctx context.Context) error {
	snap, err := s.codec.Encode(s.img)
	if err != nil {
		return fmt.Errorf("commit stroke: %w", err)
	}
	s.hist.Push(snap)
	return s.persist(ctx, snap)
}

// Undo redraws the previous snapshot. It reports false at the first entry.
// Undo never saves.
func (s *Session) Undo() bool {
	snap, ok := s.hist.Undo()
	if !ok {
		return false
	}
	s.restore(snap)
	return true
}

// Redo redraws the next snapshot. It reports false at the last entry.
// Redo never saves.
func (s *Session) Redo() bool {
	snap, ok := s.hist.Redo()
	if !ok {
		return false
	}
	s.restore(snap)
	return true
}

// Clear fills the surface with the background, records it like a stroke
// and saves it.
func (s *Session) Clear(ctx context.Context) error {
	s.drawing = false
	s.fill(Background)
	return s.CommitStroke(ctx)
}

// SetTool selects the tool for the next stroke.
func (s *Session) SetTool(t Tool) { s.tool = t }

// Tool returns the selected tool.
func (s *Session) Tool() Tool { return s.tool }

// SetColor selects the pen color for the next stroke, as "#rrggbb" or "#rgb".
func (s *Session) SetColor(hex string) error {
	c, err := ParseHexColor(hex)
	if err != nil {
		return err
	}
	s.color = c
	return nil
}

// Color returns the selected pen color.
func (s *Session) Color() color.NRGBA { return s.color }

// SetWidth selects the stroke width, clamped to [MinWidth, MaxWidth].
func (s *Session) SetWidth(w int) { s.width = clampWidth(w) }

// Width returns the selected stroke width.
func (s *Session) Width() int { return s.width }

// CanUndo reports whether Undo would change the surface.
func (s *Session) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo reports whether Redo would change the surface.
func (s *Session) CanRedo() bool { return s.hist.CanRedo() }

// HistoryLen returns the number of history entries.
func (s *Session) HistoryLen() int { return s.hist.Len() }

// Step returns the history cursor, -1 before Seed.
func (s *Session) Step() int { return s.hist.Step() }

// Image returns a copy of the surface.
func (s *Session) Image() *image.NRGBA {
	out := image.NewNRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out
}

// Snapshot returns the surface in codec form.
func (s *Session) Snapshot() (string, error) {
	return s.codec.Encode(s.img)
}

// PNG returns the surface as PNG bytes, for download or upload.
func (s *Session) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Session) persist(ctx context.Context, snap string) error {
	if s.save == nil {
		return nil
	}
	if err := s.save(ctx, snap); err != nil {
		s.log.Warn("failed to save drawing", "error", err)
		return fmt.Errorf("save drawing: %w", err)
	}
	return nil
}

// restore replaces the surface with a decoded snapshot. Undecodable data
// leaves the background fill.
func (s *Session) restore(data string) {
	src, err := s.codec.Decode(data)
	if err != nil {
		s.log.Warn("undecodable raster, using background", "error", err)
		s.fill(Background)
		return
	}
	clear(s.img.Pix)
	if nrgba, ok := src.(*image.NRGBA); ok {
		r := s.img.Rect.Intersect(nrgba.Rect.Sub(nrgba.Rect.Min))
		for y := r.Min.Y; y < r.Max.Y; y++ {
			dst := s.img.Pix[s.img.PixOffset(r.Min.X, y):s.img.PixOffset(r.Max.X, y)]
			copy(dst, nrgba.Pix[nrgba.PixOffset(nrgba.Rect.Min.X+r.Min.X, nrgba.Rect.Min.Y+y):])
		}
		return
	}
	draw.Draw(s.img, s.img.Rect, src, src.Bounds().Min, draw.Src)
}

func (s *Session) fill(c color.NRGBA) {
	draw.Draw(s.img, s.img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// segment strokes a round-capped line from a to b with the active brush.
func (s *Session) segment(a, b image.Point) {
	width := s.active.width
	if s.active.tool == Eraser {
		width *= EraserScale
	}
	radius := float64(width) / 2
	pad := int(math.Ceil(radius)) + 1

	bounds := image.Rect(min(a.X, b.X)-pad, min(a.Y, b.Y)-pad, max(a.X, b.X)+pad+1, max(a.Y, b.Y)+pad+1).
		Intersect(s.img.Rect)
	if bounds.Empty() {
		return
	}

	mask := image.NewAlpha(bounds)
	ax, ay, bx, by := float64(a.X), float64(a.Y), float64(b.X), float64(b.Y)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			d := distToSegment(float64(x)+0.5, float64(y)+0.5, ax, ay, bx, by)
			cov := radius + 0.5 - d
			if cov <= 0 {
				continue
			}
			mask.SetAlpha(x, y, color.Alpha{A: uint8(math.Round(math.Min(cov, 1) * 0xff))})
		}
	}

	if s.active.tool == Eraser {
		s.erase(mask)
		return
	}
	draw.DrawMask(s.img, bounds, image.NewUniform(s.active.color), image.Point{}, mask, bounds.Min, draw.Over)
}

// erase applies destination-out: existing alpha is scaled by the inverse
// of the mask coverage.
func (s *Session) erase(mask *image.Alpha) {
	r := mask.Rect
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m := uint32(mask.AlphaAt(x, y).A)
			if m == 0 {
				continue
			}
			i := s.img.PixOffset(x, y)
			a := uint32(s.img.Pix[i+3]) * (0xff - m) / 0xff
			if a == 0 {
				s.img.Pix[i], s.img.Pix[i+1], s.img.Pix[i+2], s.img.Pix[i+3] = 0, 0, 0, 0
				continue
			}
			s.img.Pix[i+3] = uint8(a)
		}
	}
}

// distToSegment returns the distance from (px, py) to the segment a-b.
func distToSegment(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}
