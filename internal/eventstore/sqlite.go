package eventstore

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/docweave/internal/foundation/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	payload BLOB NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_build_id ON events(build_id);
CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
`

const selectColumns = "SELECT id, build_id, event_type, timestamp, payload, metadata FROM events"

// SQLiteStore implements Store using SQLite. It satisfies build.EventAppender.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the event database at dbPath.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "open event database").
			WithContext("path", dbPath).Build()
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapError(err, errors.CategoryInternal, "initialize event schema").
			WithContext("path", dbPath).Build()
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Append adds a new event to the store.
func (s *SQLiteStore) Append(ctx context.Context, buildID, eventType string, payload []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if metadata != nil {
		var err error
		if metadataJSON, err = json.Marshal(metadata); err != nil {
			return errors.WrapError(err, errors.CategoryInternal, "encode event metadata").Build()
		}
	}
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (build_id, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		buildID, eventType, s.now().UnixNano(), payload, metadataJSON,
	)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "append event").
			WithContext("event", eventType).Build()
	}
	return nil
}

// ByBuild retrieves all events for a specific build.
func (s *SQLiteStore) ByBuild(ctx context.Context, buildID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE build_id = ? ORDER BY id", buildID)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "query events").Build()
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Range retrieves events within a time range.
func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixNano(), end.UnixNano(),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "query events").Build()
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			e            Event
			ts           int64
			metadataJSON []byte
		)
		if err := rows.Scan(&e.ID, &e.BuildID, &e.Type, &ts, &e.Payload, &metadataJSON); err != nil {
			return nil, errors.WrapError(err, errors.CategoryInternal, "scan event").Build()
		}
		e.Timestamp = time.Unix(0, ts)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, errors.WrapError(err, errors.CategoryInternal, "decode event metadata").
					WithContext("event_id", e.ID).Build()
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "iterate events").Build()
	}
	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
