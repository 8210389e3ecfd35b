package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/cmdgate/internal/identity"
	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

// verdict is the parsed human answer, provider-independent.
type humanVerdict struct {
	requestID  string
	approve    bool
	resolvedBy string
}

// outcome of applying a verdict to the row.
type outcome int

const (
	outcomeResolved outcome = iota
	outcomeAlreadyResolved
	// outcomeConflict: row was pending at fetch time but a concurrent
	// verdict won the guarded update.
	outcomeConflict
	outcomeNotFound
	outcomeExpired
	outcomeForbidden
	outcomeBadRequest
	outcomeError
)

// callerIP derives the rate-limit key. Proxy headers are consulted in
// trust order; for X-Forwarded-For only the last hop is ours to trust.
func callerIP(r *http.Request) string {
	if v := r.Header.Get("CF-Connecting-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		hops := strings.Split(v, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// validRequestID accepts only v4 UUIDs; anything else never came from
// the hook.
func validRequestID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.Version() == 4
}

// apply runs the shared verdict sequence: fetch, freshness, provenance,
// guarded transition. Returns the row (when found) for ack formatting.
func (s *Server) apply(ctx context.Context, v humanVerdict) (store.ApprovalRequest, outcome) {
	ctx, span := s.tracer.Start(ctx, "webhook.apply")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", v.requestID), attribute.Bool("verdict.approve", v.approve))

	if !validRequestID(v.requestID) {
		return store.ApprovalRequest{}, outcomeBadRequest
	}

	row, err := s.requests.Get(ctx, v.requestID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ApprovalRequest{}, outcomeNotFound
	}
	if err != nil {
		slog.Error("could not fetch approval request", "request_id", v.requestID, "error", err)
		return store.ApprovalRequest{}, outcomeError
	}

	if row.Resolved() {
		return row, outcomeAlreadyResolved
	}

	now := s.now()
	if now.Sub(row.CreatedAt) > store.RowFreshness {
		return row, outcomeExpired
	}

	// Provenance: the row must have been created by a machine holding the
	// shared secret, recently. Without a configured secret this degrades
	// to a format check inside Verify.
	if _, err := identity.Verify(s.cfg.MachineIDSecret, row.MachineID, now, store.RowFreshness); err != nil {
		slog.Warn("machine identity rejected",
			"request_id", v.requestID, "error", err)
		return row, outcomeForbidden
	}

	status := store.StatusRejected
	if v.approve {
		status = store.StatusApproved
	}
	n, err := s.requests.Resolve(ctx, v.requestID, status, v.resolvedBy, now)
	if err != nil {
		slog.Error("could not resolve approval request", "request_id", v.requestID, "error", err)
		return row, outcomeError
	}
	if n == 0 {
		// Lost the race to a concurrent verdict or the timeout.
		return row, outcomeConflict
	}

	slog.Info("approval request resolved",
		"request_id", v.requestID, "status", status, "resolved_by", v.resolvedBy)
	row.Status = status
	return row, outcomeResolved
}

// statusText is the human phrasing used in provider acks.
func ackText(row store.ApprovalRequest, out outcome, approve bool) string {
	switch out {
	case outcomeResolved:
		if approve {
			return "✅ Command approved"
		}
		return "❌ Command rejected"
	case outcomeAlreadyResolved:
		return "Request already resolved (" + string(row.Status) + ")"
	case outcomeConflict:
		return "Someone else answered first"
	case outcomeNotFound:
		return "Unknown request"
	case outcomeExpired:
		return "Request expired"
	case outcomeForbidden:
		return "Request origin could not be verified"
	case outcomeBadRequest:
		return "Malformed request id"
	default:
		return "Something went wrong, try again"
	}
}

// now is split out for tests.
func (s *Server) now() time.Time {
	if s.nowFn != nil {
		return s.nowFn()
	}
	return time.Now()
}
