// Package pg implements the webhook-side stores on Postgres. The webhook
// service holds a service-level DSN; end-user machines never see it.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

// OpenDB opens and pings a Postgres connection via the pgx stdlib driver.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PGRequestStore implements store.RequestStore backed by Postgres.
type PGRequestStore struct {
	db *sql.DB
}

var _ store.RequestStore = (*PGRequestStore)(nil)

func NewPGRequestStore(db *sql.DB) *PGRequestStore {
	return &PGRequestStore{db: db}
}

func (s *PGRequestStore) Get(ctx context.Context, id string) (store.ApprovalRequest, error) {
	var (
		row        store.ApprovalRequest
		resolvedAt sql.NullTime
		resolvedBy sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, command, danger_reason, severity, cwd, status, created_at, resolved_at, resolved_by, machine_id
		 FROM approval_requests WHERE id = $1`, id,
	).Scan(&row.ID, &row.Command, &row.DangerReason, &row.Severity, &row.Cwd,
		&row.Status, &row.CreatedAt, &resolvedAt, &resolvedBy, &row.MachineID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ApprovalRequest{}, store.ErrNotFound
	}
	if err != nil {
		return store.ApprovalRequest{}, fmt.Errorf("get approval request: %w", err)
	}
	if resolvedAt.Valid {
		row.ResolvedAt = &resolvedAt.Time
	}
	row.ResolvedBy = resolvedBy.String
	return row, nil
}

// Resolve is the single state transition. The status = 'pending' guard
// makes concurrent approvals race safely: exactly one caller sees
// rows affected = 1.
func (s *PGRequestStore) Resolve(ctx context.Context, id string, status store.Status, resolvedBy string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE approval_requests
		 SET status = $1, resolved_at = $2, resolved_by = $3
		 WHERE id = $4 AND status = 'pending'`,
		status, at, resolvedBy, id,
	)
	if err != nil {
		return 0, fmt.Errorf("resolve approval request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("resolve approval request: rows affected: %w", err)
	}
	return n, nil
}

func (s *PGRequestStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM approval_requests WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old approval requests: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
