package notes

import (
	"context"
)

// pendingSave is the single trailing autosave waiting for its timer.
type pendingSave struct {
	id    string
	patch Patch
	timer Timer
}

// AutoSave schedules patch to be applied to note id once the debounce window
// elapses. There is one pending autosave for the whole store: a new call
// cancels and replaces the previous payload, whatever note it targeted.
// Saving reports true while a payload is pending or being written.
func (s *Store) AutoSave(id string, patch Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger(context.Background()).Warn("autosave after close dropped", "note_id", id)
		return
	}
	if s.pending != nil {
		s.pending.timer.Stop()
	}
	p := &pendingSave{id: id, patch: patch}
	p.timer = s.clock.AfterFunc(s.autoSaveDelay, func() { s.fire(p) })
	s.pending = p
	s.saving = true
}

// fire runs p if it is still the pending autosave.
func (s *Store) fire(p *pendingSave) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if !s.take(p) {
		return
	}
	ctx := context.Background()
	if err := s.save(ctx, p); err != nil {
		s.logger(ctx).Warn("autosave failed", "note_id", p.id, "error", err)
	}
}

// take claims p for writing. It returns false if p was superseded or
// already flushed.
func (s *Store) take(p *pendingSave) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != p {
		return false
	}
	s.pending = nil
	return true
}

// save writes p and settles the status. Saving only clears when no newer
// autosave was scheduled meanwhile. The save time is recorded whatever the
// write outcome. Callers hold saveMu.
func (s *Store) save(ctx context.Context, p *pendingSave) error {
	_, err := s.UpdateNote(ctx, p.id, p.patch, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.saving = false
	}
	s.lastSaved = s.now()
	return err
}

// Flush writes the pending autosave now instead of waiting for its timer.
// If the timer already fired, Flush waits for that write to finish. It is a
// no-op when nothing is pending or running. Unlike the timer path, the write
// error is returned.
func (s *Store) Flush(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	p := s.pending
	s.mu.Unlock()
	if p == nil {
		return nil
	}
	p.timer.Stop()
	if !s.take(p) {
		return nil
	}
	return s.save(ctx, p)
}

// Close stops accepting new autosaves and flushes the pending one. It
// returns only after every autosave write has finished.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(ctx)
}

// Status reports whether the store has loaded, whether an autosave is in
// flight and when the last autosave completed.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{Loaded: s.loaded, Saving: s.saving, LastSaved: s.lastSaved}
}
