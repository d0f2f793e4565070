package history

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists emission records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite history store.
// The path should be a file path (e.g., "./history.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A :memory: database lives per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS emissions (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			bus TEXT NOT NULL,
			emission INTEGER NOT NULL,
			type TEXT NOT NULL,
			kind TEXT NOT NULL,
			context INTEGER NOT NULL,
			cancelled INTEGER NOT NULL,
			dispatched INTEGER NOT NULL,
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_emissions_bus_seq
		ON emissions(bus, seq)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// seq orders records by insertion across reopenings of the same file.
	_, err := s.db.Exec(`
		INSERT INTO emissions (id, seq, bus, emission, type, kind, context, cancelled, dispatched, message, timestamp)
		VALUES (
			?,
			COALESCE((SELECT MAX(seq) FROM emissions), 0) + 1,
			?, ?, ?, ?, ?, ?, ?, ?, ?
		)
	`, r.ID, r.Bus, int64(r.Emission), r.Type, r.Kind, r.Context, r.Cancelled, r.Dispatched, r.Message,
		r.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Record{}, ErrStoreClosed
	}

	row := s.db.QueryRow(`
		SELECT id, bus, emission, type, kind, context, cancelled, dispatched, message, timestamp
		FROM emissions
		WHERE id = ?
	`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record: %w", err)
	}
	return r, nil
}

// Recent implements Store.
func (s *SQLiteStore) Recent(bus string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, bus, emission, type, kind, context, cancelled, dispatched, message, timestamp
		FROM emissions
		WHERE bus = ?
		ORDER BY seq DESC
		LIMIT ?
	`, bus, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(bus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM emissions WHERE bus = ?`, bus); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

// Prune keeps the newest keep records of a bus and deletes the rest.
func (s *SQLiteStore) Prune(bus string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		DELETE FROM emissions
		WHERE bus = ? AND seq NOT IN (
			SELECT seq FROM emissions WHERE bus = ? ORDER BY seq DESC LIMIT ?
		)
	`, bus, bus, keep)
	if err != nil {
		return fmt.Errorf("prune records: %w", err)
	}
	return nil
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

func scanRecord(sc scanner) (Record, error) {
	var (
		r         Record
		emission  int64
		timestamp string
	)
	if err := sc.Scan(&r.ID, &r.Bus, &emission, &r.Type, &r.Kind, &r.Context,
		&r.Cancelled, &r.Dispatched, &r.Message, &timestamp); err != nil {
		return Record{}, err
	}
	r.Emission = uint64(emission)
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return Record{}, fmt.Errorf("parse timestamp of %s: %w", r.ID, err)
	}
	r.Timestamp = ts
	return r, nil
}
