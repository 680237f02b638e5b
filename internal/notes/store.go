package notes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kuitang/noteflow/internal/db"
	"github.com/kuitang/noteflow/internal/errs"
	"github.com/kuitang/noteflow/internal/obs"
	"github.com/oklog/ulid/v2"
)

// Storage is the durable backing for the store: two keyed collections.
// *db.DB implements it.
type Storage interface {
	ListNotes(ctx context.Context) ([]db.NoteRecord, error)
	AddNote(ctx context.Context, n db.NoteRecord) error
	PutNote(ctx context.Context, n db.NoteRecord) error
	DeleteNote(ctx context.Context, id string) error

	ListFolders(ctx context.Context) ([]db.FolderRecord, error)
	AddFolder(ctx context.Context, f db.FolderRecord) error
	PutFolder(ctx context.Context, f db.FolderRecord) error
	DeleteFolder(ctx context.Context, id string) error
}

var _ Storage = (*db.DB)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the system clock, for tests.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger used for storage failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithAutoSaveDelay overrides the AutoSave debounce window.
func WithAutoSaveDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.autoSaveDelay = d
		}
	}
}

// Store is the in-memory view of all notes and folders. Every mutation is
// written to storage first and committed to memory only after the write
// succeeds. Store is safe for concurrent use.
type Store struct {
	storage       Storage
	clock         Clock
	log           *slog.Logger
	autoSaveDelay time.Duration

	// writeMu serializes mutations so a storage write and its in-memory
	// commit are never interleaved with another mutation.
	writeMu sync.Mutex
	entropy io.Reader

	mu          sync.RWMutex
	notes       []Note // sorted by UpdatedAt, newest first
	folders     []Folder
	tags        mapset.Set[string]
	currentID   string
	searchQuery string
	loaded      bool
	saving      bool
	lastSaved   time.Time

	// saveMu is held for the whole of an autosave write, so Flush and
	// Close can wait out a timer that already fired.
	saveMu  sync.Mutex
	pending *pendingSave
	closed  bool
}

// NewStore creates an empty, unloaded store over storage. Call Initialize
// to load persisted state.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage:       storage,
		clock:         realClock{},
		autoSaveDelay: DefaultAutoSaveDelay,
		entropy:       ulid.Monotonic(rand.Reader, 0),
		tags:          mapset.NewThreadUnsafeSet[string](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) logger(ctx context.Context) *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return obs.From(ctx).With("pkg", "notes")
}

// now returns the clock time at millisecond precision, the resolution storage keeps.
func (s *Store) now() time.Time {
	return time.UnixMilli(s.clock.Now().UnixMilli()).UTC()
}

// newID returns a unique, time-ordered id. Callers hold writeMu.
func (s *Store) newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("failed to %s: %w", op, errs.Wrap(errs.Unavailable, "storage unavailable", err))
}

// Initialize loads every note and folder from storage, rebuilds the tag set
// and marks the store loaded. On a read failure the store is still marked
// loaded, with empty collections, and the error is returned.
func (s *Store) Initialize(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	noteRecords, err := s.storage.ListNotes(ctx)
	var folderRecords []db.FolderRecord
	if err == nil {
		folderRecords, err = s.storage.ListFolders(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	if err != nil {
		s.notes = nil
		s.folders = nil
		s.tags = mapset.NewThreadUnsafeSet[string]()
		s.logger(ctx).Error("failed to load notes", "error", err)
		return storageErr("load notes", err)
	}

	s.notes = make([]Note, 0, len(noteRecords))
	s.tags = mapset.NewThreadUnsafeSet[string]()
	for _, r := range noteRecords {
		n := noteFromRecord(r)
		s.notes = append(s.notes, n)
		s.tags.Append(n.Tags...)
	}
	sortByUpdated(s.notes)

	s.folders = make([]Folder, 0, len(folderRecords))
	for _, r := range folderRecords {
		s.folders = append(s.folders, folderFromRecord(r))
	}
	return nil
}

// CreateNote persists a new note, prepends it to the list, makes it the
// current note and records the save time.
func (s *Store) CreateNote(ctx context.Context, params NewNote) (*Note, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if params.FolderID != "" && !s.hasFolder(params.FolderID) {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, params.FolderID)
	}

	now := s.now()
	n := Note{
		ID:         s.newID(now),
		Title:      params.Title,
		Content:    params.Content,
		CanvasData: params.CanvasData,
		FolderID:   params.FolderID,
		Tags:       slices.Clone(params.Tags),
		Color:      params.Color,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}

	if err := s.storage.AddNote(ctx, noteToRecord(n)); err != nil {
		s.logger(ctx).Error("failed to create note", "note_id", n.ID, "error", err)
		return nil, storageErr("create note", err)
	}

	s.mu.Lock()
	s.notes = append([]Note{n}, s.notes...)
	s.tags.Append(n.Tags...)
	s.currentID = n.ID
	s.lastSaved = n.UpdatedAt
	s.mu.Unlock()

	out := n.clone()
	return &out, nil
}

// UpdateNote applies patch to the note with the given id, stamps UpdatedAt,
// persists the result and re-sorts the list. isAutoSave also records the
// save time for Status.
func (s *Store) UpdateNote(ctx context.Context, id string, patch Patch, isAutoSave bool) (*Note, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.updateNoteLocked(ctx, id, patch, isAutoSave)
}

func (s *Store) updateNoteLocked(ctx context.Context, id string, patch Patch, isAutoSave bool) (*Note, error) {
	s.mu.RLock()
	i := s.indexOfNote(id)
	var existing Note
	if i >= 0 {
		existing = s.notes[i].clone()
	}
	s.mu.RUnlock()
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}

	updated := patch.apply(existing)
	if updated.Tags == nil {
		updated.Tags = []string{}
	}
	// UpdatedAt never moves backwards, even if the wall clock does.
	updated.UpdatedAt = s.now()
	if updated.UpdatedAt.Before(existing.UpdatedAt) {
		updated.UpdatedAt = existing.UpdatedAt
	}

	if err := s.storage.PutNote(ctx, noteToRecord(updated)); err != nil {
		s.logger(ctx).Error("failed to update note", "note_id", id, "error", err)
		return nil, storageErr("update note", err)
	}

	s.mu.Lock()
	if i = s.indexOfNote(id); i >= 0 {
		s.notes[i] = updated
	}
	sortByUpdated(s.notes)
	s.tags.Append(updated.Tags...)
	if isAutoSave {
		s.lastSaved = updated.UpdatedAt
	}
	s.mu.Unlock()

	out := updated.clone()
	return &out, nil
}

// DeleteNote removes a note from storage and memory. Deleting an unknown id
// is not an error. If the note was current, no note is current afterwards.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.storage.DeleteNote(ctx, id); err != nil {
		s.logger(ctx).Error("failed to delete note", "note_id", id, "error", err)
		return storageErr("delete note", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOfNote(id); i >= 0 {
		s.notes = slices.Delete(s.notes, i, i+1)
	}
	if s.currentID == id {
		s.currentID = ""
	}
	return nil
}

// ToggleFavorite flips the favorite flag of a note.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (*Note, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	i := s.indexOfNote(id)
	var favorite bool
	if i >= 0 {
		favorite = s.notes[i].Favorite
	}
	s.mu.RUnlock()
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	return s.updateNoteLocked(ctx, id, Patch{Favorite: Bool(!favorite)}, false)
}

// CreateFolder persists a new folder. parentID "" creates a top-level folder.
func (s *Store) CreateFolder(ctx context.Context, name, parentID string) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.New(errs.InvalidArgument, "folder name is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if parentID != "" && !s.hasFolder(parentID) {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, parentID)
	}

	now := s.now()
	f := Folder{ID: s.newID(now), Name: name, ParentID: parentID, CreatedAt: now}
	if err := s.storage.AddFolder(ctx, folderToRecord(f)); err != nil {
		s.logger(ctx).Error("failed to create folder", "folder_id", f.ID, "error", err)
		return nil, storageErr("create folder", err)
	}

	s.mu.Lock()
	s.folders = append(s.folders, f)
	s.mu.Unlock()
	return &f, nil
}

// UpdateFolder renames or moves a folder. A move that would make the folder
// its own ancestor fails with ErrFolderCycle.
func (s *Store) UpdateFolder(ctx context.Context, id string, patch FolderPatch) (*Folder, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	i := s.indexOfFolder(id)
	var f Folder
	if i >= 0 {
		f = s.folders[i]
	}
	s.mu.RUnlock()
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, errs.New(errs.InvalidArgument, "folder name is required")
		}
		f.Name = name
	}
	if patch.ParentID != nil {
		parent := *patch.ParentID
		if parent != "" {
			if !s.hasFolder(parent) {
				return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, parent)
			}
			if s.isAncestorOrSelf(id, parent) {
				return nil, ErrFolderCycle
			}
		}
		f.ParentID = parent
	}

	if err := s.storage.PutFolder(ctx, folderToRecord(f)); err != nil {
		s.logger(ctx).Error("failed to update folder", "folder_id", id, "error", err)
		return nil, storageErr("update folder", err)
	}

	s.mu.Lock()
	if i = s.indexOfFolder(id); i >= 0 {
		s.folders[i] = f
	}
	s.mu.Unlock()
	return &f, nil
}

// DeleteFolder deletes a folder and moves each of its notes back to the
// root. The cascade is best effort: the folder is removed even when some
// notes could not be reassigned, and the result is ErrCascadeIncomplete
// joined with each failure. Subfolders keep their parent reference.
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.storage.DeleteFolder(ctx, id); err != nil {
		s.logger(ctx).Error("failed to delete folder", "folder_id", id, "error", err)
		return storageErr("delete folder", err)
	}

	s.mu.RLock()
	var affected []string
	for _, n := range s.notes {
		if n.FolderID == id {
			affected = append(affected, n.ID)
		}
	}
	s.mu.RUnlock()

	var failures []error
	for _, noteID := range affected {
		if _, err := s.updateNoteLocked(ctx, noteID, Patch{FolderID: String("")}, false); err != nil {
			failures = append(failures, fmt.Errorf("note %s: %w", noteID, err))
		}
	}

	s.mu.Lock()
	if i := s.indexOfFolder(id); i >= 0 {
		s.folders = slices.Delete(s.folders, i, i+1)
	}
	s.mu.Unlock()

	if len(failures) > 0 {
		s.logger(ctx).Warn("folder deleted with notes left behind",
			"folder_id", id, "failed", len(failures), "total", len(affected))
		return fmt.Errorf("%w: %w", ErrCascadeIncomplete, errors.Join(failures...))
	}
	return nil
}

func (s *Store) indexOfNote(id string) int {
	return slices.IndexFunc(s.notes, func(n Note) bool { return n.ID == id })
}

func (s *Store) indexOfFolder(id string) int {
	return slices.IndexFunc(s.folders, func(f Folder) bool { return f.ID == id })
}

func (s *Store) hasFolder(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOfFolder(id) >= 0
}

// isAncestorOrSelf reports whether folder id appears on the parent chain
// starting at start. Dangling parent references end the walk.
func (s *Store) isAncestorOrSelf(id, start string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for cur := start; cur != "" && !seen[cur]; {
		if cur == id {
			return true
		}
		seen[cur] = true
		i := s.indexOfFolder(cur)
		if i < 0 {
			return false
		}
		cur = s.folders[i].ParentID
	}
	return false
}

func sortByUpdated(notes []Note) {
	slices.SortStableFunc(notes, func(a, b Note) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
}
