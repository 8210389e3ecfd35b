// Package store defines the ports over the shared approval-request row
// store. The hook side talks to the store's REST surface with the anon
// credential (internal/store/rest); the webhook side holds a service-level
// credential and talks SQL (internal/store/pg). Row-level policies in the
// store itself keep the two sides honest.
package store

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of an approval request. Terminal states
// are absorbing: a row leaves pending at most once.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusTimeout  Status = "timeout"
)

// Retention bounds enforced by the periodic cleanup and the freshness
// checks.
const (
	// RowFreshness is how long a pending row may be acted on.
	RowFreshness = time.Hour
	// RowRetention is how long resolved rows are kept before cleanup.
	RowRetention = 24 * time.Hour
)

var (
	ErrNotFound   = errors.New("store: row not found")
	ErrNotPending = errors.New("store: row already resolved")
)

// ApprovalRequest is one persisted approval row. Command is stored after
// secret masking; MachineID is the signed identity of the creating machine
// and is immutable after insert.
type ApprovalRequest struct {
	ID           string     `json:"id"`
	Command      string     `json:"command"`
	DangerReason string     `json:"danger_reason"`
	Severity     string     `json:"severity"`
	Cwd          string     `json:"cwd"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy   string     `json:"resolved_by,omitempty"`
	MachineID    string     `json:"machine_id"`
}

// Resolved reports whether the row has left pending.
func (r ApprovalRequest) Resolved() bool { return r.Status != StatusPending }

// Subscription is an open change feed for one row. Updates delivers
// post-image rows at-least-once until Close.
type Subscription interface {
	Updates() <-chan ApprovalRequest
	Close() error
}

// RequestWriter is the hook-side port: create a request, watch it, and
// best-effort close it out once the coordinator has decided.
type RequestWriter interface {
	Insert(ctx context.Context, req ApprovalRequest) error
	// CloseOut transitions a still-pending row to the outcome the
	// coordinator actually reached (local verdict or timeout). Losing the
	// race to a late human verdict is fine; the decision is already made.
	CloseOut(ctx context.Context, id string, status Status, resolvedBy string) error
	Subscribe(ctx context.Context, id string) (Subscription, error)
}

// RequestStore is the webhook-side port, backed by a service-level
// credential the end user cannot hold.
type RequestStore interface {
	Get(ctx context.Context, id string) (ApprovalRequest, error)
	// Resolve transitions the row out of pending, guarded by
	// `status = pending`, and returns the number of rows affected. Zero
	// means a concurrent caller won the race.
	Resolve(ctx context.Context, id string, status Status, resolvedBy string, at time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RateLimitStore persists rate-limit events so multiple webhook instances
// share one limiter.
type RateLimitStore interface {
	RecordEvent(ctx context.Context, identifier string, at time.Time) error
	CountEvents(ctx context.Context, identifier string, since time.Time) (int, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
