package deadletter

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists dead letters to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite dead-letter store.
// The path should be a file path (e.g., "./deadletters.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to ":memory:" would be its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letters (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			event_key TEXT NOT NULL,
			args BLOB,
			handler_id INTEGER NOT NULL,
			loop TEXT NOT NULL,
			reason TEXT NOT NULL,
			error TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dead_letters_event_key
		ON dead_letters(event_key)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	rec.fill()
	_, err := s.db.Exec(`
		INSERT INTO dead_letters (id, event_key, args, handler_id, loop, reason, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_key = excluded.event_key,
			args = excluded.args,
			handler_id = excluded.handler_id,
			loop = excluded.loop,
			reason = excluded.reason,
			error = excluded.error,
			timestamp = excluded.timestamp
	`, rec.ID, rec.Key, rec.Args, int64(rec.HandlerID), rec.Loop, string(rec.Reason), rec.Error,
		rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("save dead letter: %w", err)
	}
	return rec.ID, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Record{}, ErrStoreClosed
	}

	row := s.db.QueryRow(`
		SELECT id, event_key, args, handler_id, loop, reason, error, timestamp
		FROM dead_letters WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load dead letter: %w", err)
	}
	return rec, nil
}

// List implements Store.
func (s *SQLiteStore) List(key string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT id, event_key, args, handler_id, loop, reason, error, timestamp
		FROM dead_letters`
	var args []any
	if key != "" {
		query += ` WHERE event_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM dead_letters WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}
	return nil
}

// Count implements Store.
func (s *SQLiteStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec       Record
		handlerID int64
		reason    string
		timestamp string
	)
	if err := row.Scan(&rec.ID, &rec.Key, &rec.Args, &handlerID, &rec.Loop, &reason, &rec.Error, &timestamp); err != nil {
		return Record{}, err
	}
	rec.HandlerID = uint64(handlerID)
	rec.Reason = Reason(reason)
	rec.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
	return rec, nil
}
