package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const stepSelectCols = `id, session_id, block_index, item_index, text, hint, critical, status,
	started_at, completed_at, duration_sec, note, override_by_master, override_master_name`

func scanStep(row rowScanner) (*Step, error) {
	var (
		st           Step
		hint         sql.NullString
		status       string
		startedAt    sql.NullInt64
		completedAt  sql.NullInt64
		duration     sql.NullInt64
		note         sql.NullString
		overrideName sql.NullString
	)
	err := row.Scan(
		&st.ID, &st.SessionID, &st.BlockIndex, &st.ItemIndex, &st.Text, &hint, &st.Critical, &status,
		&startedAt, &completedAt, &duration, &note, &st.OverrideByMaster, &overrideName,
	)
	if err != nil {
		return nil, err
	}

	st.Hint = hint.String
	st.Status = StepStatus(status)
	st.Note = note.String
	st.OverrideMasterName = overrideName.String
	if startedAt.Valid {
		t := fromUnix(startedAt.Int64)
		st.StartedAt = &t
	}
	if completedAt.Valid {
		t := fromUnix(completedAt.Int64)
		st.CompletedAt = &t
	}
	if duration.Valid {
		d := duration.Int64
		st.DurationSec = &d
	}
	return &st, nil
}

// SeedSteps creates the steps of a session from seeds.
// Pairs (block_index, item_index) that already exist are left untouched, so
// calling SeedSteps repeatedly never duplicates rows. Returns the number of
// rows actually inserted.
func (s *Store) SeedSteps(ctx context.Context, sessionID int64, seeds []StepSeed) (int, error) {
	var inserted int
	err := s.withTx(ctx, "seed steps", func(tx *sql.Tx) error {
		var err error
		inserted, err = seedSteps(ctx, tx, sessionID, seeds)
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func seedSteps(ctx context.Context, tx *sql.Tx, sessionID int64, seeds []StepSeed) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps(session_id, block_index, item_index, text, hint, critical)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, block_index, item_index) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, seed := range seeds {
		var hint sql.NullString
		if seed.Hint != "" {
			hint = sql.NullString{String: seed.Hint, Valid: true}
		}
		res, err := stmt.ExecContext(ctx, sessionID, seed.BlockIndex, seed.ItemIndex, seed.Text, hint, seed.Critical)
		if err != nil {
			return 0, fmt.Errorf("seed step %d.%d: %w", seed.BlockIndex, seed.ItemIndex, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// ListSteps returns a session's steps ordered by (block_index, item_index).
// Returns an empty slice (not nil) if the session has no steps.
func (s *Store) ListSteps(ctx context.Context, sessionID int64) ([]*Step, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+stepSelectCols+" FROM steps WHERE session_id = ? ORDER BY block_index ASC, item_index ASC",
		sessionID,
	)
	if err != nil {
		return nil, storageErr("list steps", err)
	}
	defer rows.Close()

	steps := []*Step{}
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, storageErr("list steps", err)
		}
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list steps", err)
	}
	return steps, nil
}

// GetStep retrieves a step by ID.
func (s *Store) GetStep(ctx context.Context, id int64) (*Step, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+stepSelectCols+" FROM steps WHERE id = ?", id)
	st, err := scanStep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("step %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get step", err)
	}
	return st, nil
}

// ApplyStepChange applies a status change to a step together with its
// version row, optional override and optional log entry, in one transaction.
//
// Timestamp bookkeeping:
//   - to in_progress: started_at is set if it was empty
//   - to done/failed: started_at is back-filled to now if empty, completed_at
//     is now and duration_sec = max(0, completed_at - started_at)
//   - same status: only the note changes
//
// A critical step entering failed must carry an Override and an AUDIT log
// record, otherwise ErrOverrideRequired is returned and nothing is written.
func (s *Store) ApplyStepChange(ctx context.Context, ch StepChange) (*Step, error) {
	if !ch.NewStatus.Valid() {
		return nil, storageErr("apply step change", fmt.Errorf("invalid status %q", ch.NewStatus))
	}

	now := s.clock.Now()
	err := s.withTx(ctx, "apply step change", func(tx *sql.Tx) error {
		cur, err := scanStep(tx.QueryRowContext(ctx, "SELECT "+stepSelectCols+" FROM steps WHERE id = ?", ch.StepID))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("step %d: %w", ch.StepID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read step: %w", err)
		}

		entersFailed := ch.NewStatus == StepFailed && cur.Status != StepFailed
		if cur.Critical && entersFailed {
			if ch.Override == nil || ch.Override.MasterName == "" || ch.Log == nil || ch.Log.Level != LevelAudit {
				return ErrOverrideRequired
			}
		}

		if err := updateStep(ctx, tx, cur, ch, now); err != nil {
			return err
		}

		if ch.Override != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE steps SET override_by_master = 1, override_master_name = ? WHERE id = ?`,
				ch.Override.MasterName, ch.StepID,
			); err != nil {
				return fmt.Errorf("set override: %w", err)
			}
		}

		var note sql.NullString
		if ch.SetNote && ch.Note != "" {
			note = sql.NullString{String: ch.Note, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO step_versions(step_id, changed_at, old_status, new_status, note) VALUES (?, ?, ?, ?, ?)`,
			ch.StepID, now.Unix(), string(cur.Status), string(ch.NewStatus), note,
		); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}

		if ch.Log != nil {
			rec := withDetail(*ch.Log, "step_id", ch.StepID)
			rec = withDetail(rec, "session_id", cur.SessionID)
			if err := insertLog(ctx, tx, now, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetStep(ctx, ch.StepID)
}

func updateStep(ctx context.Context, tx *sql.Tx, cur *Step, ch StepChange, now time.Time) error {
	query := "UPDATE steps SET status = ?"
	args := []any{string(ch.NewStatus)}

	if ch.NewStatus != cur.Status {
		switch {
		case ch.NewStatus == StepInProgress:
			if cur.StartedAt == nil {
				query += ", started_at = ?"
				args = append(args, now.Unix())
			}
		case ch.NewStatus.Terminal():
			started := now
			if cur.StartedAt != nil {
				started = *cur.StartedAt
			}
			duration := int64(now.Sub(started) / time.Second)
			if duration < 0 {
				duration = 0
			}
			query += ", started_at = ?, completed_at = ?, duration_sec = ?"
			args = append(args, started.Unix(), now.Unix(), duration)
		}
	}

	if ch.SetNote {
		var note sql.NullString
		if ch.Note != "" {
			note = sql.NullString{String: ch.Note, Valid: true}
		}
		query += ", note = ?"
		args = append(args, note)
	}

	query += " WHERE id = ?"
	args = append(args, ch.StepID)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return nil
}

// ListStepVersions returns the version trail of a step, oldest first.
func (s *Store) ListStepVersions(ctx context.Context, stepID int64) ([]*StepVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step_id, changed_at, old_status, new_status, note
		FROM step_versions
		WHERE step_id = ?
		ORDER BY id ASC
	`, stepID)
	if err != nil {
		return nil, storageErr("list step versions", err)
	}
	defer rows.Close()

	versions := []*StepVersion{}
	for rows.Next() {
		var (
			v         StepVersion
			changedAt int64
			oldStatus sql.NullString
			newStatus sql.NullString
			note      sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.StepID, &changedAt, &oldStatus, &newStatus, &note); err != nil {
			return nil, storageErr("list step versions", err)
		}
		v.ChangedAt = fromUnix(changedAt)
		v.OldStatus = StepStatus(oldStatus.String)
		v.NewStatus = StepStatus(newStatus.String)
		v.Note = note.String
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list step versions", err)
	}
	return versions, nil
}
