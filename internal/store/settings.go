package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// GetSetting returns the value stored under key.
// ok is false when the key has never been set.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("get setting", fmt.Errorf("%s: %w", key, err))
	}
	return value, true, nil
}

// GetSettings returns the values for keys that exist. Missing keys are absent
// from the map.
func (s *Store) GetSettings(ctx context.Context, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := s.GetSetting(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// SetSetting creates or overwrites a setting.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return s.SetSettings(ctx, map[string]string{key: value})
}

// SetSettings writes all pairs in one transaction.
func (s *Store) SetSettings(ctx context.Context, values map[string]string) error {
	return s.withTx(ctx, "set settings", func(tx *sql.Tx) error {
		return upsertSettings(ctx, tx, values)
	})
}

// SetSettingsIfAbsent writes each pair only if its key does not exist yet and
// returns the keys that were written. Existing values are never touched.
func (s *Store) SetSettingsIfAbsent(ctx context.Context, values map[string]string) ([]string, error) {
	var written []string
	err := s.withTx(ctx, "set settings if absent", func(tx *sql.Tx) error {
		for _, k := range sortedKeys(values) {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO settings(key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`,
				k, values[k],
			)
			if err != nil {
				return fmt.Errorf("insert %s: %w", k, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if n > 0 {
				written = append(written, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

// SetSettingsWithLog writes settings and appends a log entry atomically.
func (s *Store) SetSettingsWithLog(ctx context.Context, values map[string]string, rec LogRecord) error {
	return s.withTx(ctx, "set settings", func(tx *sql.Tx) error {
		if err := upsertSettings(ctx, tx, values); err != nil {
			return err
		}
		return insertLog(ctx, tx, s.clock.Now(), rec)
	})
}

// NextReportSeq atomically increments the report sequence counter and
// returns the new value. The first call on a fresh store returns 1.
func (s *Store) NextReportSeq(ctx context.Context) (int64, error) {
	var next int64
	err := s.withTx(ctx, "next report seq", func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, SettingReportSeq).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			raw = "0"
		} else if err != nil {
			return fmt.Errorf("read counter: %w", err)
		}

		cur, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || cur < 0 {
			return fmt.Errorf("%w: %q", ErrSequenceCorrupt, raw)
		}

		next = cur + 1
		return upsertSettings(ctx, tx, map[string]string{SettingReportSeq: strconv.FormatInt(next, 10)})
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func upsertSettings(ctx context.Context, tx *sql.Tx, values map[string]string) error {
	for _, k := range sortedKeys(values) {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings(key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			k, values[k],
		)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", k, err)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
