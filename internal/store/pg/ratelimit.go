package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

// PGRateLimitStore implements store.RateLimitStore on Postgres so several
// webhook instances share one counting window.
type PGRateLimitStore struct {
	db *sql.DB
}

var _ store.RateLimitStore = (*PGRateLimitStore)(nil)

func NewPGRateLimitStore(db *sql.DB) *PGRateLimitStore {
	return &PGRateLimitStore{db: db}
}

func (s *PGRateLimitStore) RecordEvent(ctx context.Context, identifier string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_events (id, identifier, created_at) VALUES ($1, $2, $3)`,
		uuid.Must(uuid.NewV7()), identifier, at)
	if err != nil {
		return fmt.Errorf("record rate limit event: %w", err)
	}
	return nil
}

func (s *PGRateLimitStore) CountEvents(ctx context.Context, identifier string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limit_events WHERE identifier = $1 AND created_at >= $2`,
		identifier, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rate limit events: %w", err)
	}
	return n, nil
}

func (s *PGRateLimitStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete rate limit events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
