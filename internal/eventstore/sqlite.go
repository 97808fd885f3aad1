package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	mu    sync.RWMutex
	clock clockwork.Clock
}

// SQLiteOption customizes a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithStoreClock sets the clock used to timestamp records.
func WithStoreClock(c clockwork.Clock) SQLiteOption {
	return func(s *SQLiteStore) { s.clock = c }
}

// NewSQLiteStore creates a new SQLite-based history store.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseOpenFailed, err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("%w: %w", ErrInitializeSchemaFailed, err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		status TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_run_id ON snapshots(run_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON snapshots(timestamp);
	CREATE INDEX IF NOT EXISTS idx_status ON snapshots(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new record to the store.
func (s *SQLiteStore) Append(ctx context.Context, runID, status string, payload []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("%w: marshal metadata: %w", ErrAppendFailed, err)
		}
	}

	timestamp := s.clock.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO snapshots (run_id, status, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		runID, status, timestamp, payload, metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAppendFailed, err)
	}

	return nil
}

const selectColumns = "SELECT id, run_id, status, timestamp, payload, metadata FROM snapshots"

// GetByRunID retrieves all records for a specific daemon run.
func (s *SQLiteStore) GetByRunID(ctx context.Context, runID string) ([]Record, error) {
	return s.query(ctx, selectColumns+" WHERE run_id = ? ORDER BY id", runID)
}

// GetRange retrieves records within a time range.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Record, error) {
	return s.query(ctx, selectColumns+" WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli())
}

// Recent returns the newest records first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.query(ctx, selectColumns+" ORDER BY id DESC LIMIT ?", limit)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var timestampMilli int64
		var metadataJSON []byte

		err := rows.Scan(&r.ID, &r.RunID, &r.Status, &timestampMilli, &r.Payload, &metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrQueryFailed, err)
		}

		r.Timestamp = time.UnixMilli(timestampMilli).UTC()

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
				return nil, fmt.Errorf("%w: unmarshal metadata: %w", ErrQueryFailed, err)
			}
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", ErrQueryFailed, err)
	}

	return records, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
