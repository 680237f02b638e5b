package notes

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Read-only views over in-memory state. None of them touch storage, and all
// of them return copies the caller may modify.

// Notes returns every note, most recently updated first.
func (s *Store) Notes() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(Note) bool { return true })
}

// Note returns the note with the given id.
func (s *Store) Note(id string) (Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOfNote(id)
	if i < 0 {
		return Note{}, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	return s.notes[i].clone(), nil
}

// Folders returns every folder in creation order.
func (s *Store) Folders() []Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.folders)
}

// Folder returns the folder with the given id.
func (s *Store) Folder(id string) (Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOfFolder(id)
	if i < 0 {
		return Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	return s.folders[i], nil
}

// Tags returns every tag seen since load, sorted. Tags are never pruned, so
// the result may include tags no note carries anymore.
func (s *Store) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tags := s.tags.ToSlice()
	slices.Sort(tags)
	return tags
}

// CurrentNote returns the note being edited, if any.
func (s *Store) CurrentNote() (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentID == "" {
		return Note{}, false
	}
	i := s.indexOfNote(s.currentID)
	if i < 0 {
		return Note{}, false
	}
	return s.notes[i].clone(), true
}

// SetCurrentNote selects the note being edited. An empty id clears the selection.
func (s *Store) SetCurrentNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" && s.indexOfNote(id) < 0 {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	s.currentID = id
	return nil
}

// SetSearchQuery sets the query FilteredNotes matches against.
func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchQuery = q
}

// SearchQuery returns the current search query.
func (s *Store) SearchQuery() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchQuery
}

// FilteredNotes returns the notes matching the current search query.
func (s *Store) FilteredNotes() []Note {
	return s.Search(s.SearchQuery())
}

// Search returns the notes whose title, content or any tag contains q,
// ignoring case. An empty query matches every note.
func (s *Store) Search(q string) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q == "" {
		return s.filterLocked(func(Note) bool { return true })
	}
	m := newMatcher(q)
	return s.filterLocked(m.matches)
}

// NotesByFolder returns the notes in a folder. An empty folderID selects
// notes that are in no folder.
func (s *Store) NotesByFolder(folderID string) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(n Note) bool { return n.FolderID == folderID })
}

// NotesByTag returns the notes carrying tag exactly.
func (s *Store) NotesByTag(tag string) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(n Note) bool { return n.HasTag(tag) })
}

// FavoriteNotes returns the notes marked favorite.
func (s *Store) FavoriteNotes() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(func(n Note) bool { return n.Favorite })
}

// RecentNotes returns the first limit notes of the updated-first ordering.
// limit <= 0 means DefaultRecentLimit.
func (s *Store) RecentNotes(limit int) []Note {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Note, 0, min(limit, len(s.notes)))
	for _, n := range s.notes[:min(limit, len(s.notes))] {
		out = append(out, n.clone())
	}
	return out
}

func (s *Store) filterLocked(keep func(Note) bool) []Note {
	out := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		if keep(n) {
			out = append(out, n.clone())
		}
	}
	return out
}

// matcher does case-insensitive substring matching with Unicode case folding.
// A cases.Caser is stateful, so each matcher owns its own.
type matcher struct {
	fold  cases.Caser
	query string
}

func newMatcher(q string) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.query = m.fold.String(q)
	return m
}

func (m *matcher) contains(s string) bool {
	return strings.Contains(m.fold.String(s), m.query)
}

func (m *matcher) matches(n Note) bool {
	if m.contains(n.Title) || m.contains(n.Content) {
		return true
	}
	return slices.ContainsFunc(n.Tags, m.contains)
}
