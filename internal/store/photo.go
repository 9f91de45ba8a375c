package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AddPhoto attaches an image path to a step, appending rec (if non-nil) to
// the log in the same transaction.
func (s *Store) AddPhoto(ctx context.Context, stepID int64, filePath string, rec *LogRecord) (*Photo, error) {
	now := s.clock.Now()
	var id int64
	err := s.withTx(ctx, "add photo", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO photos(step_id, file_path, added_at) VALUES (?, ?, ?)`,
			stepID, filePath, now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert photo: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if rec != nil {
			return insertLog(ctx, tx, now, withDetail(*rec, "step_id", stepID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Photo{ID: id, StepID: stepID, FilePath: filePath, AddedAt: now}, nil
}

// ListPhotos returns a step's photos in the order they were added.
func (s *Store) ListPhotos(ctx context.Context, stepID int64) ([]*Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, step_id, file_path, added_at FROM photos WHERE step_id = ? ORDER BY id ASC`,
		stepID,
	)
	if err != nil {
		return nil, storageErr("list photos", err)
	}
	defer rows.Close()

	photos := []*Photo{}
	for rows.Next() {
		var (
			p       Photo
			addedAt int64
		)
		if err := rows.Scan(&p.ID, &p.StepID, &p.FilePath, &addedAt); err != nil {
			return nil, storageErr("list photos", err)
		}
		p.AddedAt = fromUnix(addedAt)
		photos = append(photos, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list photos", err)
	}
	return photos, nil
}

// PhotosBySession returns every photo path of a session keyed by step ID.
// Steps without photos are absent from the map.
func (s *Store) PhotosBySession(ctx context.Context, sessionID int64) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.step_id, p.file_path
		FROM photos p
		JOIN steps st ON st.id = p.step_id
		WHERE st.session_id = ?
		ORDER BY p.step_id ASC, p.id ASC
	`, sessionID)
	if err != nil {
		return nil, storageErr("photos by session", err)
	}
	defer rows.Close()

	out := map[int64][]string{}
	for rows.Next() {
		var (
			stepID int64
			path   string
		)
		if err := rows.Scan(&stepID, &path); err != nil {
			return nil, storageErr("photos by session", err)
		}
		out[stepID] = append(out[stepID], path)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("photos by session", err)
	}
	return out, nil
}
