package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const sessionSelectCols = "id, order_no, operator_name, started_at, completed_at, status"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess        Session
		startedAt   int64
		completedAt sql.NullInt64
		status      string
	)
	if err := row.Scan(&sess.ID, &sess.OrderNo, &sess.OperatorName, &startedAt, &completedAt, &status); err != nil {
		return nil, err
	}
	sess.StartedAt = fromUnix(startedAt)
	if completedAt.Valid {
		t := fromUnix(completedAt.Int64)
		sess.CompletedAt = &t
	}
	sess.Status = SessionStatus(status)
	return &sess, nil
}

// CreateSession inserts a new active session and seeds its steps in one
// transaction, appending rec (if non-nil) to the log.
func (s *Store) CreateSession(ctx context.Context, orderNo, operatorName string, seeds []StepSeed, rec *LogRecord) (*Session, error) {
	now := s.clock.Now()
	var id int64
	err := s.withTx(ctx, "create session", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO sessions(order_no, operator_name, started_at, status) VALUES (?, ?, ?, ?)`,
			orderNo, operatorName, now.Unix(), string(SessionActive),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if _, err := seedSteps(ctx, tx, id, seeds); err != nil {
			return err
		}
		if rec != nil {
			return insertLog(ctx, tx, now, withDetail(*rec, "session_id", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetSession(ctx, id)
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sessionSelectCols+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get session", err)
	}
	return sess, nil
}

// ActiveSession returns the most recently started active session.
// Returns ErrNotFound if no session is active.
func (s *Store) ActiveSession(ctx context.Context) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionSelectCols+" FROM sessions WHERE status = ? ORDER BY id DESC LIMIT 1",
		string(SessionActive),
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("active session", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sessionSelectCols+" FROM sessions ORDER BY id DESC")
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, storageErr("list sessions", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}

// CompleteSession moves an active session to completed and stamps
// completed_at. Returns ErrNotFound if the session is not active.
func (s *Store) CompleteSession(ctx context.Context, id int64, rec *LogRecord) (*Session, error) {
	return s.closeSession(ctx, "complete session", id, SessionCompleted, rec)
}

// AbandonSession moves an active session to abandoned.
// Returns ErrNotFound if the session is not active.
func (s *Store) AbandonSession(ctx context.Context, id int64, rec *LogRecord) (*Session, error) {
	return s.closeSession(ctx, "abandon session", id, SessionAbandoned, rec)
}

func (s *Store) closeSession(ctx context.Context, op string, id int64, to SessionStatus, rec *LogRecord) (*Session, error) {
	now := s.clock.Now()
	var notActive bool
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
			string(to), now.Unix(), id, string(SessionActive),
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			notActive = true
			return nil
		}
		if rec != nil {
			return insertLog(ctx, tx, now, withDetail(*rec, "session_id", id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notActive {
		return nil, fmt.Errorf("active session %d: %w", id, ErrNotFound)
	}
	return s.GetSession(ctx, id)
}

// withDetail returns a copy of rec with key set unless the caller already
// supplied it.
func withDetail(rec LogRecord, key string, value any) LogRecord {
	details := make(map[string]any, len(rec.Details)+1)
	for k, v := range rec.Details {
		details[k] = v
	}
	if _, ok := details[key]; !ok {
		details[key] = value
	}
	rec.Details = details
	return rec
}
