package notes

import (
	"context"

	"github.com/kuitang/noteflow/internal/canvas"
)

// OpenCanvas starts a drawing session on a note, seeded from its canvas
// data. Each committed stroke and each clear writes the raster back to the
// note; undo and redo do not. A Save set in opts runs after the note update
// succeeds.
func (s *Store) OpenCanvas(ctx context.Context, id string, opts canvas.Options) (*canvas.Session, error) {
	n, err := s.Note(id)
	if err != nil {
		return nil, err
	}

	next := opts.Save
	opts.Save = func(ctx context.Context, data string) error {
		if _, err := s.UpdateNote(ctx, id, Patch{CanvasData: String(data)}, false); err != nil {
			return err
		}
		if next != nil {
			return next(ctx, data)
		}
		return nil
	}
	if opts.Logger == nil {
		opts.Logger = s.logger(ctx).With("note_id", id)
	}

	session := canvas.NewSession(opts)
	if err := session.Seed(n.CanvasData); err != nil {
		return nil, err
	}
	return session, nil
}
