package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps session records in a single sqlite table. Writes are
// serialized on a mutex; the table-level upsert gives last-write-wins
// semantics per id, which is enough because exactly one process owns a
// given session id at a time.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// sessions table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping session database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		credentials TEXT NOT NULL,
		keys TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ctx, id)
}

func (s *SQLiteStore) get(ctx context.Context, id string) (*Record, error) {
	var credsText, keysText string
	row := s.db.QueryRowContext(ctx, "SELECT credentials, keys FROM sessions WHERE id = ?", id)
	if err := row.Scan(&credsText, &keysText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	creds, err := unmarshalMapping(credsText)
	if err != nil {
		return nil, fmt.Errorf("session %s credentials: %w", id, err)
	}
	keys, err := unmarshalKeys(keysText)
	if err != nil {
		return nil, fmt.Errorf("session %s keys: %w", id, err)
	}
	return &Record{ID: id, Credentials: creds, Keys: keys}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, id string, credentials map[string]any, keys map[string]map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, id, credentials, keys)
}

func (s *SQLiteStore) put(ctx context.Context, id string, credentials map[string]any, keys map[string]map[string]any) error {
	credsText, err := marshalMapping(credentials)
	if err != nil {
		return err
	}
	keysText, err := marshalKeys(keys)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions (id, credentials, keys) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET credentials = excluded.credentials, keys = excluded.keys`,
		id, credsText, keysText)
	if err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) MergeKeys(ctx context.Context, id, category string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &Record{ID: id, Credentials: map[string]any{}}
	}
	rec.Keys = mergeKeyMaps(rec.Keys, category, values)
	return s.put(ctx, id, rec.Credentials, rec.Keys)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
