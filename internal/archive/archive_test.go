package archive

import (
	"context"
	"image"
	"image/color"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kuitang/noteflow/internal/canvas"
	"github.com/kuitang/noteflow/internal/notes"
	"github.com/kuitang/noteflow/internal/testdb"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var baseTime = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *notes.Store {
	t.Helper()
	s := notes.NewStore(testdb.MustNewInMemory(t),
		notes.WithClock(notes.NewFakeClock(baseTime)),
		notes.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func drawing(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(1, 1, color.NRGBA{R: 0x63, G: 0x66, B: 0xf1, A: 0xff})
	data, err := canvas.DataURLCodec{}.Encode(img)
	require.NoError(t, err)
	return data
}

func byTitle(ns []notes.Note) map[string]notes.Note {
	out := make(map[string]notes.Note, len(ns))
	for _, n := range ns {
		out[n.Title] = n
	}
	return out
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)

	work, err := src.CreateFolder(ctx, "Work", "")
	require.NoError(t, err)
	drafts, err := src.CreateFolder(ctx, "Drafts", work.ID)
	require.NoError(t, err)
	_, err = src.CreateFolder(ctx, "Empty", "")
	require.NoError(t, err)

	pic := drawing(t)
	_, err = src.CreateNote(ctx, notes.NewNote{
		Title:      "Shopping list",
		Content:    "# Groceries\n\n- milk\n- eggs\n",
		Tags:       []string{"home", "todo"},
		Color:      "#fef3c7",
		CanvasData: pic,
	})
	require.NoError(t, err)
	plan, err := src.CreateNote(ctx, notes.NewNote{Title: "Q3 plan", Content: "ship it", FolderID: work.ID})
	require.NoError(t, err)
	_, err = src.ToggleFavorite(ctx, plan.ID)
	require.NoError(t, err)
	_, err = src.CreateNote(ctx, notes.NewNote{Title: "Outline", Content: "---\nnot front matter\n---", FolderID: drafts.ID})
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	a := New(fs)
	exported, err := a.Export(ctx, "/out", src)
	require.NoError(t, err)
	assert.Equal(t, Report{Notes: 3, Folders: 3, Drawings: 1}, exported)

	ok, err := afero.DirExists(fs, "/out/Work/Drafts")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = afero.DirExists(fs, "/out/Empty")
	require.NoError(t, err)
	assert.True(t, ok)

	dst := newStore(t)
	imported, err := a.Import(ctx, "/out", dst)
	require.NoError(t, err)
	assert.Equal(t, Report{Notes: 3, Folders: 3, Drawings: 1}, imported)

	got := byTitle(dst.Notes())
	require.Len(t, got, 3)

	shopping := got["Shopping list"]
	assert.Equal(t, "# Groceries\n\n- milk\n- eggs\n", shopping.Content)
	assert.Equal(t, []string{"home", "todo"}, shopping.Tags)
	assert.Equal(t, "#fef3c7", shopping.Color)
	assert.Equal(t, pic, shopping.CanvasData)
	assert.Empty(t, shopping.FolderID)

	assert.True(t, got["Q3 plan"].Favorite)
	assert.Equal(t, "---\nnot front matter\n---", got["Outline"].Content)

	folders := make(map[string]notes.Folder)
	for _, f := range dst.Folders() {
		folders[f.Name] = f
	}
	require.Len(t, folders, 3)
	assert.Equal(t, folders["Work"].ID, got["Q3 plan"].FolderID)
	assert.Equal(t, folders["Drafts"].ID, got["Outline"].FolderID)
	assert.Equal(t, folders["Work"].ID, folders["Drafts"].ParentID)
	assert.Empty(t, folders["Empty"].ParentID)
}

func TestImport_ReusesExistingFolders(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	doc, err := MarshalNote(FrontMatter{Title: "Standup"}, "notes")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/in/Work/standup.md", doc, 0o644))

	dst := newStore(t)
	work, err := dst.CreateFolder(ctx, "Work", "")
	require.NoError(t, err)

	report, err := New(fs).Import(ctx, "/in", dst)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Folders)
	assert.Len(t, dst.Folders(), 1)
	assert.Len(t, dst.NotesByFolder(work.ID), 1)
}

func TestImport_SkipsUnreadableFiles(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	good, err := MarshalNote(FrontMatter{Title: "Good"}, "body")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/in/good.md", good, 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/plain.md", []byte("no header here"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/broken.md", []byte("---\ntitle: [unclosed\n---\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/readme.txt", []byte("ignored"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/.hidden/secret.md", good, 0o644))

	dst := newStore(t)
	report, err := New(fs).Import(ctx, "/in", dst)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notes)
	assert.ElementsMatch(t, []string{"plain.md", "broken.md"}, report.Skipped)
	assert.Empty(t, dst.Folders())
}

func TestImport_MissingDrawingKeepsNote(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	doc, err := MarshalNote(FrontMatter{Title: "Sketch", Canvas: "sketch.png"}, "")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/in/sketch.md", doc, 0o644))

	dst := newStore(t)
	report, err := New(fs).Import(ctx, "/in", dst)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notes)
	assert.Equal(t, 0, report.Drawings)
	require.Len(t, dst.Notes(), 1)
	assert.Empty(t, dst.Notes()[0].CanvasData)
}

func TestExport_CancelledContext(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	_, err := src.CreateNote(ctx, notes.NewNote{Title: "a"})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = New(afero.NewMemMapFs()).Export(cancelled, "/out", src)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExport_LeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	src := newStore(t)
	_, err := src.CreateNote(ctx, notes.NewNote{Title: "One", CanvasData: drawing(t)})
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	_, err = New(fs).Export(ctx, "/out", src)
	require.NoError(t, err)

	var names []string
	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Len(t, names, 2)
	for _, name := range names {
		assert.False(t, strings.HasPrefix(name, ".tmp-"), name)
		assert.Contains(t, []string{".md", ".png"}, filepath.Ext(name))
	}
}

// =============================================================================
// Property: MarshalNote then UnmarshalNote returns the same header and content
// =============================================================================

func testNoteFile_RoundTrip(t *rapid.T) {
	fm := FrontMatter{
		ID:        rapid.StringMatching(`[0-9A-Z]{26}`).Draw(t, "id"),
		Title:     rapid.StringMatching(`[A-Za-z0-9 .,:#'"!?-]{0,40}`).Draw(t, "title"),
		Tags:      rapid.SliceOfN(rapid.StringMatching(`[a-z0-9_-]{1,12}`), 0, 4).Draw(t, "tags"),
		Folder:    rapid.StringMatching(`([A-Za-z]{1,8}/){0,2}[A-Za-z]{0,8}`).Draw(t, "folder"),
		Color:     rapid.SampledFrom([]string{"", "#fef3c7", "#abc"}).Draw(t, "color"),
		Favorite:  rapid.Bool().Draw(t, "favorite"),
		CreatedAt: baseTime.Add(time.Duration(rapid.Int64Range(0, 1e12).Draw(t, "created")) * time.Millisecond),
		Canvas:    rapid.SampledFrom([]string{"", "x-01.png"}).Draw(t, "canvas"),
	}
	fm.UpdatedAt = fm.CreatedAt.Add(time.Duration(rapid.Int64Range(0, 1e9).Draw(t, "updated")) * time.Millisecond)
	if len(fm.Tags) == 0 {
		fm.Tags = nil
	}
	content := strings.ReplaceAll(rapid.String().Draw(t, "content"), "\r", "")

	data, err := MarshalNote(fm, content)
	if err != nil {
		t.Fatalf("MarshalNote: %v", err)
	}
	gotFM, gotContent, err := UnmarshalNote(data)
	if err != nil {
		t.Fatalf("UnmarshalNote: %v\n%s", err, data)
	}
	if gotContent != content {
		t.Fatalf("content = %q, want %q", gotContent, content)
	}
	if !gotFM.CreatedAt.Equal(fm.CreatedAt) || !gotFM.UpdatedAt.Equal(fm.UpdatedAt) {
		t.Fatalf("timestamps = %v/%v, want %v/%v", gotFM.CreatedAt, gotFM.UpdatedAt, fm.CreatedAt, fm.UpdatedAt)
	}
	gotFM.CreatedAt, gotFM.UpdatedAt = fm.CreatedAt, fm.UpdatedAt
	if !assert.ObjectsAreEqual(fm, gotFM) {
		t.Fatalf("front matter = %+v, want %+v", gotFM, fm)
	}
}

func TestNoteFile_RoundTrip(t *testing.T) {
	rapid.Check(t, testNoteFile_RoundTrip)
}

func FuzzNoteFile_RoundTrip(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testNoteFile_RoundTrip))
}

func TestUnmarshalNote(t *testing.T) {
	fm, content, err := UnmarshalNote([]byte("---\r\ntitle: Windows\r\n---\r\n\r\nline one\r\nline two"))
	require.NoError(t, err)
	assert.Equal(t, "Windows", fm.Title)
	assert.Equal(t, "line one\nline two", content)

	fm, content, err = UnmarshalNote([]byte("---\ntitle: Header only\n---"))
	require.NoError(t, err)
	assert.Equal(t, "Header only", fm.Title)
	assert.Empty(t, content)

	_, _, err = UnmarshalNote([]byte("title: nope"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)
	_, _, err = UnmarshalNote([]byte("---\ntitle: never closed\n"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Shopping list", "shopping-list"},
		{"  Q3 -- plan!  ", "q3-plan"},
		{"Café crème", "café-crème"},
		{"", "note"},
		{"!!!", "note"},
		{strings.Repeat("a", 100), strings.Repeat("a", maxSlugLen)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), "slugify(%q)", tt.in)
	}
}

func TestDirName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Work", "Work"},
		{"a/b", "a-b"},
		{`c:\temp`, "c:-temp"},
		{"  ", "folder"},
		{"..", "_"},
		{".git", "_git"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dirName(tt.in), "dirName(%q)", tt.in)
	}
}

func TestFolderPaths(t *testing.T) {
	folders := []notes.Folder{
		{ID: "01AAAAAAAAAAAAAAAAAAAAAAA1", Name: "Work", CreatedAt: baseTime},
		{ID: "01AAAAAAAAAAAAAAAAAAAAAAA2", Name: "Work", CreatedAt: baseTime.Add(time.Second)},
		{ID: "01AAAAAAAAAAAAAAAAAAAAAAA3", Name: "Drafts", ParentID: "01AAAAAAAAAAAAAAAAAAAAAAA1", CreatedAt: baseTime},
		{ID: "01AAAAAAAAAAAAAAAAAAAAAAA4", Name: "Orphan", ParentID: "gone", CreatedAt: baseTime},
	}
	got := folderPaths(folders)
	assert.Equal(t, map[string]string{
		"01AAAAAAAAAAAAAAAAAAAAAAA1": "Work",
		"01AAAAAAAAAAAAAAAAAAAAAAA2": "Work (aaaaaaa2)",
		"01AAAAAAAAAAAAAAAAAAAAAAA3": "Work/Drafts",
		"01AAAAAAAAAAAAAAAAAAAAAAA4": "Orphan",
	}, got)
}
