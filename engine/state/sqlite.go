package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

const defaultSQLitePath = ".anima/session.db"

const (
	kindString = "string"
	kindBool   = "bool"
)

// SQLiteStore keeps one row per key in a prefs table.
type SQLiteStore struct {
	*prefs
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	values, err := s.loadAll()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.prefs = newPrefs(values)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

func (s *SQLiteStore) loadAll() (map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT key, kind, value FROM prefs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]interface{})
	for rows.Next() {
		var key, kind, value string
		if err := rows.Scan(&key, &kind, &value); err != nil {
			return nil, err
		}
		switch kind {
		case kindBool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("corrupt bool pref '%s': %w", key, err)
			}
			values[key] = b
		default:
			values[key] = value
		}
	}
	return values, rows.Err()
}

// Flush upserts every value in one transaction.
func (s *SQLiteStore) Flush() error {
	values, dirty := s.snapshot()
	if !dirty {
		return nil
	}
	if err := s.write(values); err != nil {
		s.markDirty()
		return err
	}
	return nil
}

func (s *SQLiteStore) write(values map[string]interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, v := range values {
		kind, value := kindString, ""
		switch tv := v.(type) {
		case bool:
			kind, value = kindBool, strconv.FormatBool(tv)
		case string:
			value = tv
		default:
			value = fmt.Sprint(tv)
		}
		if _, err := tx.Exec(
			`INSERT INTO prefs (key, kind, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`,
			key, kind, value, now,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.Flush()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
