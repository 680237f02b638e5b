package canvas

// History is a linear undo/redo list of encoded raster snapshots with a
// cursor. Step is -1 while the history is empty. Pushing after an undo
// discards every entry past the cursor.
type History struct {
	entries []string
	step    int
	limit   int
}

// NewHistory returns an empty history. limit > 0 bounds the number of
// entries kept; the oldest entries are dropped first.
func NewHistory(limit int) *History {
	return &History{step: -1, limit: limit}
}

// Push truncates entries after the cursor, appends snapshot and moves the
// cursor onto it.
func (h *History) Push(snapshot string) {
	h.entries = append(h.entries[:h.step+1], snapshot)
	if h.limit > 0 && len(h.entries) > h.limit {
		drop := len(h.entries) - h.limit
		clear(h.entries[:drop])
		h.entries = h.entries[drop:]
	}
	h.step = len(h.entries) - 1
}

// Undo moves the cursor back one entry and returns the snapshot now under
// it. It reports false, leaving the cursor alone, at the first entry.
func (h *History) Undo() (string, bool) {
	if h.step <= 0 {
		return "", false
	}
	h.step--
	return h.entries[h.step], true
}

// Redo moves the cursor forward one entry and returns the snapshot now under
// it. It reports false at the last entry.
func (h *History) Redo() (string, bool) {
	if h.step >= len(h.entries)-1 {
		return "", false
	}
	h.step++
	return h.entries[h.step], true
}

// Current returns the snapshot under the cursor.
func (h *History) Current() (string, bool) {
	if h.step < 0 {
		return "", false
	}
	return h.entries[h.step], true
}

// CanUndo reports whether Undo would move the cursor.
func (h *History) CanUndo() bool { return h.step > 0 }

// CanRedo reports whether Redo would move the cursor.
func (h *History) CanRedo() bool { return h.step < len(h.entries)-1 }

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Step returns the cursor.
func (h *History) Step() int { return h.step }

// Reset empties the history.
func (h *History) Reset() {
	clear(h.entries)
	h.entries = h.entries[:0]
	h.step = -1
}
