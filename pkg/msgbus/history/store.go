package history

import (
	"errors"
	"time"
)

// Store persists emission records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores one record.
	Append(r Record) error

	// Get retrieves a record by id.
	// Returns ErrNotFound if the record doesn't exist.
	Get(id string) (Record, error)

	// Recent returns up to limit records of a bus, newest first.
	// A limit <= 0 returns every record. Returns an empty slice (not an
	// error) if the bus has no records.
	Recent(bus string, limit int) ([]Record, error)

	// Clear removes every record of a bus.
	// Returns nil if the bus has no records.
	Clear(bus string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Record describes one completed emission.
type Record struct {
	ID         string
	Bus        string
	Emission   uint64
	Type       string
	Kind       string
	Context    int64
	Cancelled  bool
	Dispatched int
	// Message is the formatted message value.
	Message   string
	Timestamp time.Time
}

// Sentinel errors for history operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("history record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("history store closed")
)
