package notes

import (
	"context"
	"image"
	"strings"
	"testing"

	"github.com/kuitang/noteflow/internal/canvas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCanvas_StrokesAndClearPersistUndoDoesNot(t *testing.T) {
	s, storage, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{Title: "sketch"})
	require.NoError(t, err)

	session, err := s.OpenCanvas(ctx, n.ID, canvas.Options{Width: 32, Height: 24})
	require.NoError(t, err)
	require.Equal(t, 0, session.Step())

	stroke := canvas.Stroke{Color: "#000000", Width: 3, Points: []image.Point{{X: 2, Y: 12}, {X: 30, Y: 12}}}
	require.NoError(t, session.Draw(ctx, stroke))
	assert.Equal(t, 1, storage.putCount())

	got, err := s.Note(n.ID)
	require.NoError(t, err)
	afterStroke, err := session.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, afterStroke, got.CanvasData)
	assert.True(t, strings.HasPrefix(got.CanvasData, canvas.DataURLPrefix))

	require.True(t, session.Undo())
	assert.Equal(t, 1, storage.putCount(), "undo must not save")
	got, _ = s.Note(n.ID)
	assert.Equal(t, afterStroke, got.CanvasData)

	require.NoError(t, session.Clear(ctx))
	assert.Equal(t, 2, storage.putCount())
	blank, err := session.Snapshot()
	require.NoError(t, err)
	got, _ = s.Note(n.ID)
	assert.Equal(t, blank, got.CanvasData)
}

func TestOpenCanvas_SeedsFromExistingDrawing(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{})
	require.NoError(t, err)
	first, err := s.OpenCanvas(ctx, n.ID, canvas.Options{Width: 16, Height: 16})
	require.NoError(t, err)
	require.NoError(t, first.Draw(ctx, canvas.Stroke{Points: []image.Point{{X: 1, Y: 1}, {X: 14, Y: 14}}}))
	want, err := first.Snapshot()
	require.NoError(t, err)

	second, err := s.OpenCanvas(ctx, n.ID, canvas.Options{Width: 16, Height: 16})
	require.NoError(t, err)
	got, err := second.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.False(t, second.CanUndo(), "a new session starts a new history")
}

func TestOpenCanvas_ChainsCallerSave(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{})
	require.NoError(t, err)

	var seen []string
	session, err := s.OpenCanvas(ctx, n.ID, canvas.Options{
		Width: 8, Height: 8,
		Save: func(_ context.Context, data string) error {
			seen = append(seen, data)
			return nil
		},
	})
	require.NoError(t, err)
	require.NoError(t, session.Clear(ctx))
	assert.Len(t, seen, 1)
}

func TestOpenCanvas_UnknownNote(t *testing.T) {
	s, _, _ := newTestStore(t)
	_, err := s.OpenCanvas(context.Background(), "missing", canvas.Options{})
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestOpenCanvas_DeletedNoteFailsSave(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{})
	require.NoError(t, err)
	session, err := s.OpenCanvas(ctx, n.ID, canvas.Options{Width: 8, Height: 8})
	require.NoError(t, err)
	require.NoError(t, s.DeleteNote(ctx, n.ID))

	err = session.Clear(ctx)
	assert.ErrorIs(t, err, ErrNoteNotFound)
	assert.Equal(t, 2, session.HistoryLen())
}
