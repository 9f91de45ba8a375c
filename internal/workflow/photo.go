package workflow

import (
	"context"
	"errors"

	"github.com/roach88/nestcheck/internal/store"
)

// PhotoSource acquires an image for a step and returns its stored path.
// An empty path with a nil error means the operator cancelled.
// Implemented by *capture.FileSource.
type PhotoSource interface {
	Acquire(ctx context.Context, stepID int64) (string, error)
}

// AttachPhoto acquires a photo for a step and records it.
//
// A cancelled acquisition returns (nil, nil). A failed one returns an
// *IOError and leaves a photo_error entry in the log. Photos can be attached
// to steps in any status while the session is active.
func (e *Engine) AttachPhoto(ctx context.Context, sc SessionContext, stepID int64, src PhotoSource) (*store.Photo, error) {
	st, err := e.sessionStep(ctx, sc, stepID)
	if err != nil {
		return nil, err
	}

	path, err := src.Acquire(ctx, st.ID)
	if err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		e.logger.Error("photo capture failed", "step_id", st.ID, "error", err)
		e.record(ctx, store.LevelError, "photo_error", map[string]any{
			"step_id": st.ID,
			"error":   err.Error(),
		})
		return nil, &IOError{Capability: "photo", Err: err}
	}
	if path == "" {
		e.logger.Debug("photo cancelled", "step_id", st.ID)
		return nil, nil
	}

	photo, err := e.store.AddPhoto(ctx, st.ID, path, &store.LogRecord{
		Level:   store.LevelInfo,
		Action:  "photo_add",
		Details: map[string]any{"path": path},
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("photo attached", "step_id", st.ID, "path", path)
	return photo, nil
}

// Photos returns the photos attached to a step.
func (e *Engine) Photos(ctx context.Context, sc SessionContext, stepID int64) ([]*store.Photo, error) {
	if _, err := e.Step(ctx, sc, stepID); err != nil {
		return nil, err
	}
	return e.store.ListPhotos(ctx, stepID)
}
