package notes

import (
	"context"
	"testing"
	"time"

	"github.com/kuitang/noteflow/internal/db"

	"github.com/kuitang/noteflow/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestAutoSave_LastPayloadWinsWithOneWrite(t *testing.T) {
	s, storage, clock := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{Title: "draft", Content: "start"})
	require.NoError(t, err)

	s.AutoSave(n.ID, Patch{Content: String("a")})
	clock.Advance(400 * time.Millisecond)
	s.AutoSave(n.ID, Patch{Content: String("b")})
	assert.True(t, s.Status().Saving)

	clock.Advance(999 * time.Millisecond)
	assert.Zero(t, storage.putCount(), "nothing should be written inside the window")

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, storage.putCount())
	assert.Zero(t, clock.Pending())

	got, err := s.Note(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Content)
	assert.Equal(t, "draft", got.Title)

	st := s.Status()
	assert.False(t, st.Saving)
	assert.Equal(t, baseTime.Add(1400*time.Millisecond), st.LastSaved)
}

func TestAutoSave_PayloadsReplaceNotMerge(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{Title: "t0", Content: "c0"})
	require.NoError(t, err)

	s.AutoSave(n.ID, Patch{Title: String("t1")})
	s.AutoSave(n.ID, Patch{Content: String("c1")})
	clock.Advance(DefaultAutoSaveDelay)

	got, err := s.Note(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "t0", got.Title, "the superseded payload must not be applied")
	assert.Equal(t, "c1", got.Content)
}

func TestAutoSave_OneTimerForAllNotes(t *testing.T) {
	s, storage, clock := newTestStore(t)
	ctx := context.Background()

	a, err := s.CreateNote(ctx, NewNote{Content: "a0"})
	require.NoError(t, err)
	b, err := s.CreateNote(ctx, NewNote{Content: "b0"})
	require.NoError(t, err)

	s.AutoSave(a.ID, Patch{Content: String("a1")})
	s.AutoSave(b.ID, Patch{Content: String("b1")})
	assert.Equal(t, 1, clock.Pending())
	clock.Advance(DefaultAutoSaveDelay)

	gotA, _ := s.Note(a.ID)
	gotB, _ := s.Note(b.ID)
	assert.Equal(t, "a0", gotA.Content)
	assert.Equal(t, "b1", gotB.Content)
	assert.Equal(t, 1, storage.putCount())
}

func TestAutoSave_MissingNoteStillSettles(t *testing.T) {
	s, storage, clock := newTestStore(t)

	s.AutoSave("gone", Patch{Content: String("x")})
	clock.Advance(DefaultAutoSaveDelay)

	st := s.Status()
	assert.False(t, st.Saving)
	assert.False(t, st.LastSaved.IsZero())
	assert.Zero(t, storage.putCount())
}

func TestAutoSave_StorageFailureStillRecordsLastSaved(t *testing.T) {
	s, storage, clock := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{Content: "safe"})
	require.NoError(t, err)
	storage.setFailAll(true)

	s.AutoSave(n.ID, Patch{Content: String("lost")})
	clock.Advance(DefaultAutoSaveDelay)

	st := s.Status()
	assert.False(t, st.Saving)
	assert.Equal(t, baseTime.Add(DefaultAutoSaveDelay), st.LastSaved)
	got, _ := s.Note(n.ID)
	assert.Equal(t, "safe", got.Content, "memory keeps the last committed content")
}

func TestAutoSave_CustomDelay(t *testing.T) {
	d := testdb.MustNewInMemory(t)
	storage := &faultyStorage{DB: d}
	clock := NewFakeClock(baseTime)
	s := NewStore(storage, WithClock(clock), WithAutoSaveDelay(250*time.Millisecond), quietLogger())
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	n, err := s.CreateNote(ctx, NewNote{})
	require.NoError(t, err)
	s.AutoSave(n.ID, Patch{Content: String("quick")})
	clock.Advance(250 * time.Millisecond)

	assert.Equal(t, 1, storage.putCount())
}

func TestFlush_WritesPendingImmediately(t *testing.T) {
	s, storage, clock := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{})
	require.NoError(t, err)

	require.NoError(t, s.Flush(ctx), "flush with nothing pending is a no-op")
	assert.Zero(t, storage.putCount())

	s.AutoSave(n.ID, Patch{Content: String("now")})
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 1, storage.putCount())
	assert.False(t, s.Status().Saving)
	assert.Zero(t, clock.Pending())

	// The stopped timer never fires a second write.
	clock.Advance(DefaultAutoSaveDelay)
	assert.Equal(t, 1, storage.putCount())
}

func TestFlush_ReturnsWriteError(t *testing.T) {
	s, storage, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{})
	require.NoError(t, err)
	storage.setFailAll(true)

	s.AutoSave(n.ID, Patch{Content: String("x")})
	assert.ErrorIs(t, s.Flush(ctx), errInjected)
}

func TestClose_FlushesAndRejectsLaterAutoSaves(t *testing.T) {
	s, storage, clock := newTestStore(t)
	ctx := context.Background()

	n, err := s.CreateNote(ctx, NewNote{})
	require.NoError(t, err)

	s.AutoSave(n.ID, Patch{Content: String("final")})
	require.NoError(t, s.Close(ctx))
	got, _ := s.Note(n.ID)
	assert.Equal(t, "final", got.Content)

	s.AutoSave(n.ID, Patch{Content: String("late")})
	assert.Zero(t, clock.Pending())
	assert.False(t, s.Status().Saving)
	assert.Equal(t, 1, storage.putCount())
}

func TestAutoSave_RealClockLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	d, err := testdb.NewInMemory()
	require.NoError(t, err)
	defer d.Close()

	s := NewStore(d, WithAutoSaveDelay(20*time.Millisecond), quietLogger())
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	n, err := s.CreateNote(ctx, NewNote{})
	require.NoError(t, err)
	s.AutoSave(n.ID, Patch{Content: String("one")})
	s.AutoSave(n.ID, Patch{Content: String("two")})

	require.Eventually(t, func() bool { return !s.Status().Saving }, 2*time.Second, 5*time.Millisecond)
	got, err := s.Note(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Content)

	s.AutoSave(n.ID, Patch{Content: String("three")})
	require.NoError(t, s.Close(ctx))
	got, _ = s.Note(n.ID)
	assert.Equal(t, "three", got.Content)
}

// blockingStorage holds every PutNote until release is closed.
type blockingStorage struct {
	*memStorage
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStorage) PutNote(ctx context.Context, n db.NoteRecord) error {
	b.entered <- struct{}{}
	<-b.release
	return b.memStorage.PutNote(ctx, n)
}

func TestClose_WaitsForFiredAutoSave(t *testing.T) {
	storage := &blockingStorage{
		memStorage: newMemStorage(),
		entered:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	clock := NewFakeClock(baseTime)
	s := NewStore(storage, WithClock(clock), quietLogger())
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))

	n, err := s.CreateNote(ctx, NewNote{Content: "start"})
	require.NoError(t, err)
	s.AutoSave(n.ID, Patch{Content: String("final")})

	fired := make(chan struct{})
	go func() {
		defer close(fired)
		clock.Advance(DefaultAutoSaveDelay)
	}()
	<-storage.entered

	closed := make(chan error, 1)
	go func() { closed <- s.Close(ctx) }()
	select {
	case err := <-closed:
		t.Fatalf("Close returned %v while the autosave write was still running", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(storage.release)
	require.NoError(t, <-closed)
	<-fired

	records, err := storage.ListNotes(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "final", records[0].Content)
	assert.False(t, s.Status().Saving)
}
