package canvas

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saveRecorder struct {
	calls []string
	err   error
}

func (r *saveRecorder) save(_ context.Context, data string) error {
	r.calls = append(r.calls, data)
	return r.err
}

func newTestSession(t *testing.T, rec *saveRecorder) *Session {
	t.Helper()
	s := NewSession(Options{Width: 40, Height: 30, Save: rec.save})
	require.NoError(t, s.Seed(""))
	return s
}

func snapshot(t *testing.T, s *Session) string {
	t.Helper()
	snap, err := s.Snapshot()
	require.NoError(t, err)
	return snap
}

func horizontal(y int) []image.Point {
	return []image.Point{{X: 2, Y: y}, {X: 20, Y: y}, {X: 37, Y: y}}
}

func TestSession_SeedBlankFillsBackground(t *testing.T) {
	s := newTestSession(t, &saveRecorder{})

	assert.Equal(t, 0, s.Step())
	assert.Equal(t, 1, s.HistoryLen())
	assert.Equal(t, Background, s.Image().NRGBAAt(0, 0))
	assert.Equal(t, Background, s.Image().NRGBAAt(39, 29))
}

func TestSession_SeedFromRaster(t *testing.T) {
	ctx := context.Background()
	src := newTestSession(t, &saveRecorder{})
	require.NoError(t, src.Draw(ctx, Stroke{Color: "#ef4444", Width: 4, Points: horizontal(10)}))
	want := snapshot(t, src)

	s := NewSession(Options{Width: 40, Height: 30})
	require.NoError(t, s.Seed(want))
	assert.Equal(t, want, snapshot(t, s))
	assert.Equal(t, 0, s.Step())
}

func TestSession_SeedWithGarbageFallsBackToBackground(t *testing.T) {
	s := NewSession(Options{Width: 10, Height: 10})
	require.NoError(t, s.Seed("data:image/png;base64,not-base64!!"))

	assert.Equal(t, Background, s.Image().NRGBAAt(5, 5))
	assert.Equal(t, 1, s.HistoryLen())
}

func TestSession_UndoRestoresAndNewStrokeDropsRedo(t *testing.T) {
	ctx := context.Background()
	rec := &saveRecorder{}
	s := newTestSession(t, rec)

	require.NoError(t, s.Draw(ctx, Stroke{Color: "#000000", Width: 3, Points: horizontal(5)}))
	afterA := snapshot(t, s)
	require.NoError(t, s.Draw(ctx, Stroke{Color: "#3b82f6", Width: 3, Points: horizontal(20)}))
	afterB := snapshot(t, s)
	require.NotEqual(t, afterA, afterB)

	require.True(t, s.Undo())
	assert.Equal(t, afterA, snapshot(t, s))
	assert.True(t, s.CanRedo())

	require.True(t, s.Redo())
	assert.Equal(t, afterB, snapshot(t, s))
	require.True(t, s.Undo())

	require.NoError(t, s.Draw(ctx, Stroke{Color: "#10b981", Width: 3, Points: horizontal(25)}))
	assert.False(t, s.CanRedo())
	assert.False(t, s.Redo())
	assert.Equal(t, 3, s.HistoryLen())

	// Only the three strokes saved; undo and redo never do.
	assert.Len(t, rec.calls, 3)
}

func TestSession_UndoRedoBoundaries(t *testing.T) {
	s := newTestSession(t, &saveRecorder{})
	before := snapshot(t, s)

	assert.False(t, s.Undo())
	assert.False(t, s.Redo())
	assert.Equal(t, before, snapshot(t, s))
	assert.Equal(t, 0, s.Step())
}

func TestSession_ClearAppendsAndSaves(t *testing.T) {
	ctx := context.Background()
	rec := &saveRecorder{}
	s := newTestSession(t, rec)
	blank := snapshot(t, s)

	require.NoError(t, s.Draw(ctx, Stroke{Width: 5, Points: horizontal(15)}))
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, blank, snapshot(t, s))
	assert.Equal(t, 3, s.HistoryLen())
	require.Len(t, rec.calls, 2)
	assert.Equal(t, blank, rec.calls[1])

	require.True(t, s.Undo())
	assert.NotEqual(t, blank, snapshot(t, s))
}

func TestSession_PointerLeaveCommitsLikePointerUp(t *testing.T) {
	ctx := context.Background()
	rec := &saveRecorder{}
	s := newTestSession(t, rec)

	s.PointerDown(image.Point{X: 1, Y: 1})
	s.PointerMove(image.Point{X: 30, Y: 20})
	require.NoError(t, s.PointerLeave(ctx))
	assert.Equal(t, 2, s.HistoryLen())
	assert.Len(t, rec.calls, 1)

	// Moving or releasing without a pressed pointer does nothing.
	s.PointerMove(image.Point{X: 5, Y: 25})
	require.NoError(t, s.PointerUp(ctx))
	assert.Equal(t, 2, s.HistoryLen())
	assert.Len(t, rec.calls, 1)
}

func TestSession_PenPaintsAndEraserRemoves(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, &saveRecorder{})

	require.NoError(t, s.Draw(ctx, Stroke{Color: "#000000", Width: 4, Points: horizontal(15)}))
	assert.Equal(t, color.NRGBA{A: 0xff}, s.Image().NRGBAAt(20, 15))

	require.NoError(t, s.Draw(ctx, Stroke{Tool: Eraser, Width: 2, Points: horizontal(15)}))
	// Eraser width is 3x: a 6px band around the line is fully transparent.
	img := s.Image()
	assert.Equal(t, uint8(0), img.NRGBAAt(20, 15).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(20, 13).A)
	assert.Equal(t, Background, img.NRGBAAt(20, 25))
}

func TestSession_ToolSettingsAreNotHistory(t *testing.T) {
	s := newTestSession(t, &saveRecorder{})

	s.SetTool(Eraser)
	require.NoError(t, s.SetColor("#ec4899"))
	s.SetWidth(50)
	assert.Equal(t, MaxWidth, s.Width())
	s.SetWidth(0)
	assert.Equal(t, MinWidth, s.Width())

	assert.Equal(t, Eraser, s.Tool())
	assert.Equal(t, color.NRGBA{R: 0xec, G: 0x48, B: 0x99, A: 0xff}, s.Color())
	assert.Equal(t, 1, s.HistoryLen())
	assert.Error(t, s.SetColor("pink"))
}

func TestSession_SaveFailureKeepsHistoryEntry(t *testing.T) {
	ctx := context.Background()
	rec := &saveRecorder{err: errors.New("disk full")}
	s := newTestSession(t, rec)

	err := s.Draw(ctx, Stroke{Points: horizontal(3)})
	require.Error(t, err)
	assert.ErrorIs(t, err, rec.err)
	assert.Equal(t, 2, s.HistoryLen())
	assert.True(t, s.CanUndo())
}

func TestSession_MaxHistoryBoundsUndoDepth(t *testing.T) {
	ctx := context.Background()
	s := NewSession(Options{Width: 20, Height: 20, MaxHistory: 3})
	require.NoError(t, s.Seed(""))
	for y := 2; y < 18; y += 4 {
		require.NoError(t, s.Draw(ctx, Stroke{Points: []image.Point{{X: 1, Y: y}, {X: 18, Y: y}}}))
	}

	assert.Equal(t, 3, s.HistoryLen())
	assert.True(t, s.Undo())
	assert.True(t, s.Undo())
	assert.False(t, s.Undo())
}

func TestDataURLCodec_RoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	codec := DataURLCodec{}
	enc, err := codec.Encode(img)
	require.NoError(t, err)
	assert.Contains(t, enc, DataURLPrefix)

	dec, err := codec.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), dec.Bounds())
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 128}, color.NRGBAModel.Convert(dec.At(1, 1)))

	_, err = codec.Decode("data:image/jpeg;base64,AAAA")
	assert.ErrorIs(t, err, ErrBadRaster)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "#6366f1", want: color.NRGBA{R: 0x63, G: 0x66, B: 0xf1, A: 0xff}},
		{in: "#fff", want: color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{in: "6366f1", wantErr: true},
		{in: "#12345", wantErr: true},
		{in: "#zzzzzz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHexColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
