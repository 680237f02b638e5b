package notes

import (
	"slices"
	"time"

	"github.com/kuitang/noteflow/internal/errs"
)

const (
	// DefaultTitle is used when a note is created without a title.
	DefaultTitle = "Untitled"

	// DefaultRecentLimit is the number of notes RecentNotes returns for limit <= 0.
	DefaultRecentLimit = 5

	// DefaultAutoSaveDelay is the debounce window for AutoSave.
	DefaultAutoSaveDelay = time.Second
)

// Error sentinels. Each carries an errs.Code so the CLI can map it to an exit status.
var (
	// ErrNoteNotFound is returned when an operation targets a note id the store does not hold.
	ErrNoteNotFound = errs.New(errs.NotFound, "note not found")

	// ErrFolderNotFound is returned when an operation targets an unknown folder id.
	ErrFolderNotFound = errs.New(errs.NotFound, "folder not found")

	// ErrFolderCycle is returned when a folder would become its own ancestor.
	ErrFolderCycle = errs.New(errs.InvalidArgument, "folder cannot be moved into itself or a descendant")

	// ErrCascadeIncomplete is returned by DeleteFolder when the folder was removed
	// but some of its notes could not be moved back to the root.
	ErrCascadeIncomplete = errs.New(errs.Unavailable, "folder deleted but some notes were not reassigned")
)

// Note represents a user's note with metadata.
// Nullable fields use "" for null: CanvasData, FolderID and Color.
type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CanvasData string    `json:"canvas_data,omitempty"`
	FolderID   string    `json:"folder_id,omitempty"`
	Tags       []string  `json:"tags"`
	Color      string    `json:"color,omitempty"`
	Favorite   bool      `json:"favorite"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasTag reports whether the note carries tag exactly.
func (n Note) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

func (n Note) clone() Note {
	n.Tags = slices.Clone(n.Tags)
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return n
}

// Folder is an optional single-parent grouping for notes.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNote contains the caller-supplied fields for CreateNote.
// Zero values take the defaults: title "Untitled", empty content, no drawing,
// no folder, no tags, no color. New notes are never favorites.
type NewNote struct {
	Title      string
	Content    string
	CanvasData string
	FolderID   string
	Tags       []string
	Color      string
}

// Patch is a set of field changes applied by UpdateNote and AutoSave.
// Nil pointers leave a field untouched; for the nullable fields (CanvasData,
// FolderID, Color) a pointer to "" clears the value. A nil Tags leaves tags
// unchanged and a non-nil empty slice clears them.
type Patch struct {
	Title      *string
	Content    *string
	CanvasData *string
	FolderID   *string
	Tags       []string
	Color      *string
	Favorite   *bool
}

func (p Patch) apply(n Note) Note {
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.CanvasData != nil {
		n.CanvasData = *p.CanvasData
	}
	if p.FolderID != nil {
		n.FolderID = *p.FolderID
	}
	if p.Tags != nil {
		n.Tags = slices.Clone(p.Tags)
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
	if p.Favorite != nil {
		n.Favorite = *p.Favorite
	}
	return n
}

// FolderPatch is a set of field changes applied by UpdateFolder.
// A pointer to "" for ParentID moves the folder to the top level.
type FolderPatch struct {
	Name     *string
	ParentID *string
}

// Status reports load and save progress for a status bar.
type Status struct {
	Loaded    bool
	Saving    bool
	LastSaved time.Time
}

// String returns a pointer to s, for building a Patch.
func String(s string) *string {
	return &s
}

// Bool returns a pointer to b, for building a Patch.
func Bool(b bool) *bool {
	return &b
}
