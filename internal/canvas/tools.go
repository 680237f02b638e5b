package canvas

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Tool selects how a stroke is composited.
type Tool int

const (
	// Pen paints the stroke color over existing pixels.
	Pen Tool = iota
	// Eraser removes existing pixels under the stroke.
	Eraser
)

func (t Tool) String() string {
	switch t {
	case Pen:
		return "pen"
	case Eraser:
		return "eraser"
	default:
		return "tool(" + strconv.Itoa(int(t)) + ")"
	}
}

// ParseTool parses "pen" or "eraser".
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pen":
		return Pen, nil
	case "eraser":
		return Eraser, nil
	}
	return Pen, fmt.Errorf("unknown tool %q", s)
}

const (
	// MinWidth and MaxWidth bound the stroke width.
	MinWidth = 1
	MaxWidth = 20

	// DefaultWidth is the stroke width of a new session.
	DefaultWidth = 2

	// EraserScale multiplies the stroke width while erasing.
	EraserScale = 3
)

// Palette is the set of swatch colors offered for the pen.
var Palette = []string{
	"#6366f1", "#8b5cf6", "#ec4899", "#f97316",
	"#10b981", "#3b82f6", "#f59e0b", "#ef4444",
	"#000000", "#ffffff",
}

// DefaultColor is the pen color of a new session.
const DefaultColor = "#6366f1"

// Background is the fill used by Seed and Clear.
var Background = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// ParseHexColor parses "#rgb" or "#rrggbb".
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("color %q must start with #", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("color %q must be #rgb or #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func clampWidth(w int) int {
	return min(max(w, MinWidth), MaxWidth)
}
