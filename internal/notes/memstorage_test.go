package notes

import (
	"context"
	"slices"
	"sync"

	"github.com/kuitang/noteflow/internal/db"
)

// memStorage is a map-backed Storage for tests that do not need SQL.
type memStorage struct {
	mu      sync.Mutex
	notes   map[string]db.NoteRecord
	folders map[string]db.FolderRecord
}

func newMemStorage() *memStorage {
	return &memStorage{
		notes:   make(map[string]db.NoteRecord),
		folders: make(map[string]db.FolderRecord),
	}
}

func (m *memStorage) ListNotes(context.Context) ([]db.NoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.NoteRecord, 0, len(m.notes))
	for _, n := range m.notes {
		n.Tags = slices.Clone(n.Tags)
		out = append(out, n)
	}
	return out, nil
}

func (m *memStorage) AddNote(_ context.Context, n db.NoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notes[n.ID]; ok {
		return db.ErrDuplicateKey
	}
	m.notes[n.ID] = n
	return nil
}

func (m *memStorage) PutNote(_ context.Context, n db.NoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[n.ID] = n
	return nil
}

func (m *memStorage) DeleteNote(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, id)
	return nil
}

func (m *memStorage) ListFolders(context.Context) ([]db.FolderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]db.FolderRecord, 0, len(m.folders))
	for _, f := range m.folders {
		out = append(out, f)
	}
	return out, nil
}

func (m *memStorage) AddFolder(_ context.Context, f db.FolderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.folders[f.ID]; ok {
		return db.ErrDuplicateKey
	}
	m.folders[f.ID] = f
	return nil
}

func (m *memStorage) PutFolder(_ context.Context, f db.FolderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[f.ID] = f
	return nil
}

func (m *memStorage) DeleteFolder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.folders, id)
	return nil
}
