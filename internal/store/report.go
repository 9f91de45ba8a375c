package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// AddReport registers a generated document. Fails with a StorageError if seq
// has already been used by another report.
func (s *Store) AddReport(ctx context.Context, sessionID, seq int64, filePath string, rec *LogRecord) (*Report, error) {
	now := s.clock.Now()
	var id int64
	err := s.withTx(ctx, "add report", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO reports(session_id, seq, file_path, created_at) VALUES (?, ?, ?, ?)`,
			sessionID, seq, filePath, now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		if rec != nil {
			r := withDetail(*rec, "session_id", sessionID)
			r = withDetail(r, "seq", seq)
			return insertLog(ctx, tx, now, withDetail(r, "file_path", filePath))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reports, err := s.queryReports(ctx, `WHERE r.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("report %d: %w", id, ErrNotFound)
	}
	return reports[0], nil
}

// ListReports returns reports newest first. A non-empty orderLike keeps only
// reports whose session order number contains it, ignoring ASCII case.
func (s *Store) ListReports(ctx context.Context, orderLike string) ([]*Report, error) {
	if orderLike == "" {
		return s.queryReports(ctx, ``)
	}
	return s.queryReports(ctx, `WHERE se.order_no LIKE '%' || ? || '%' ESCAPE '\'`, escapeLike(orderLike))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes v match literally inside a LIKE pattern.
func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}

func (s *Store) queryReports(ctx context.Context, where string, args ...any) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.session_id, se.order_no, r.seq, r.file_path, r.created_at
		FROM reports r
		JOIN sessions se ON se.id = r.session_id
		`+where+`
		ORDER BY r.seq DESC
	`, args...)
	if err != nil {
		return nil, storageErr("list reports", err)
	}
	defer rows.Close()

	reports := []*Report{}
	for rows.Next() {
		var (
			r         Report
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.OrderNo, &r.Seq, &r.FilePath, &createdAt); err != nil {
			return nil, storageErr("list reports", err)
		}
		r.CreatedAt = fromUnix(createdAt)
		reports = append(reports, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list reports", err)
	}
	return reports, nil
}
