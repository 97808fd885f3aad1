package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving snapshot records.
type Store interface {
	// Append adds a new record to the store.
	Append(ctx context.Context, runID, status string, payload []byte, metadata map[string]string) error

	// GetByRunID retrieves all records for a daemon run, oldest first.
	GetByRunID(ctx context.Context, runID string) ([]Record, error)

	// GetRange retrieves records within a time range, oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Record, error)

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Close closes the store and releases resources.
	Close() error
}
