// Package sqlite provides a single-instance rate-limit store. Used when
// the webhook runs without a shared Postgres counting table; events live
// in a local file and the limiter degrades to per-instance counting.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rate_limit_events (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_limit_events_lookup
	ON rate_limit_events (identifier, created_at);
`

// RateLimitStore implements store.RateLimitStore on a local SQLite file.
type RateLimitStore struct {
	db *sql.DB
}

var _ store.RateLimitStore = (*RateLimitStore)(nil)

// Open creates or opens the event database at path and ensures the schema.
func Open(path string) (*RateLimitStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc.org/sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &RateLimitStore{db: db}, nil
}

func (s *RateLimitStore) Close() error { return s.db.Close() }

func (s *RateLimitStore) RecordEvent(ctx context.Context, identifier string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_events (id, identifier, created_at) VALUES (?, ?, ?)`,
		uuid.NewString(), identifier, at.UTC())
	if err != nil {
		return fmt.Errorf("record rate limit event: %w", err)
	}
	return nil
}

func (s *RateLimitStore) CountEvents(ctx context.Context, identifier string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limit_events WHERE identifier = ? AND created_at >= ?`,
		identifier, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rate limit events: %w", err)
	}
	return n, nil
}

func (s *RateLimitStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete rate limit events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
