package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

func insertLog(ctx context.Context, tx *sql.Tx, now time.Time, rec LogRecord) error {
	details, err := marshalDetails(rec.Details)
	if err != nil {
		return err
	}
	level := rec.Level
	if level == "" {
		level = LevelInfo
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO logs(ts, level, action, details) VALUES (?, ?, ?, ?)`,
		now.Unix(), string(level), rec.Action, details,
	); err != nil {
		return fmt.Errorf("insert log %s: %w", rec.Action, err)
	}
	return nil
}

func marshalDetails(details map[string]any) (string, error) {
	if len(details) == 0 {
		return "{}", nil
	}
	// encoding/json sorts map keys, so identical details always serialise
	// to identical text.
	b, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("marshal log details: %w", err)
	}
	return string(b), nil
}

// AppendLog appends one entry to the process-wide log stream.
func (s *Store) AppendLog(ctx context.Context, rec LogRecord) error {
	return s.withTx(ctx, "append log", func(tx *sql.Tx) error {
		return insertLog(ctx, tx, s.clock.Now(), rec)
	})
}

// ListLogs returns log entries matching filter, newest first.
func (s *Store) ListLogs(ctx context.Context, filter LogFilter) ([]*LogEntry, error) {
	query := `SELECT id, ts, level, action, details FROM logs WHERE 1 = 1`
	var args []any
	if filter.Level != "" {
		query += ` AND level = ?`
		args = append(args, string(filter.Level))
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	query += ` ORDER BY id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list logs", err)
	}
	defer rows.Close()

	entries := []*LogEntry{}
	for rows.Next() {
		var (
			e       LogEntry
			ts      int64
			level   string
			details string
		)
		if err := rows.Scan(&e.ID, &ts, &level, &e.Action, &details); err != nil {
			return nil, storageErr("list logs", err)
		}
		e.TS = fromUnix(ts)
		e.Level = LogLevel(level)
		e.Details = map[string]any{}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, storageErr("list logs", fmt.Errorf("log %d details: %w", e.ID, err))
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list logs", err)
	}
	return entries, nil
}

// ExportLogsCSV writes the whole log stream to w as semicolon separated
// values with a header row (ts;level;action;details_json), newest first.
// Timestamps are RFC 3339 in UTC. Returns the number of data rows written.
func (s *Store) ExportLogsCSV(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, level, action, details FROM logs ORDER BY id DESC`)
	if err != nil {
		return 0, storageErr("export logs", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{"ts", "level", "action", "details_json"}); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	n := 0
	for rows.Next() {
		var (
			ts                     int64
			level, action, details string
		)
		if err := rows.Scan(&ts, &level, &action, &details); err != nil {
			return n, storageErr("export logs", err)
		}
		record := []string{fromUnix(ts).UTC().Format(time.RFC3339), level, action, details}
		if err := cw.Write(record); err != nil {
			return n, fmt.Errorf("write row %d: %w", n+1, err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, storageErr("export logs", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("flush: %w", err)
	}
	return n, nil
}
