package webhook

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/cmdgate/internal/identity"
	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

type fakeRequests struct {
	mu          sync.Mutex
	rows        map[string]store.ApprovalRequest
	resolveZero bool
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{rows: make(map[string]store.ApprovalRequest)}
}

func (f *fakeRequests) put(row store.ApprovalRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row.ID] = row
}

func (f *fakeRequests) Get(_ context.Context, id string) (store.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return store.ApprovalRequest{}, store.ErrNotFound
	}
	return row, nil
}

func (f *fakeRequests) Resolve(_ context.Context, id string, status store.Status, resolvedBy string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveZero {
		return 0, nil
	}
	row, ok := f.rows[id]
	if !ok || row.Status != store.StatusPending {
		return 0, nil
	}
	row.Status = status
	row.ResolvedBy = resolvedBy
	row.ResolvedAt = &at
	f.rows[id] = row
	return 1, nil
}

func (f *fakeRequests) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, row := range f.rows {
		if row.CreatedAt.Before(cutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

const testSecret = "shared-machine-secret"

var testNow = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(requests *fakeRequests, mutate func(*Config)) *Server {
	cfg := &Config{
		Port:            8080,
		MachineIDSecret: testSecret,
	}
	if mutate != nil {
		mutate(cfg)
	}
	s := NewServer(cfg, requests, nil)
	s.nowFn = func() time.Time { return testNow }
	return s
}

// pendingRow seeds a fresh pending row with a valid machine identity.
func pendingRow(f *fakeRequests) store.ApprovalRequest {
	row := store.ApprovalRequest{
		ID:           uuid.NewString(),
		Command:      "rm -rf /var/data",
		DangerReason: "Recursive force delete",
		Severity:     "high",
		Cwd:          "/srv",
		Status:       store.StatusPending,
		CreatedAt:    testNow.Add(-time.Minute),
		MachineID:    identity.Sign(testSecret, strings.Repeat("ab", 16), testNow.Add(-time.Minute)),
	}
	f.put(row)
	return row
}

// TestApply_ApproveAndReject covers the happy transitions.
func TestApply_ApproveAndReject(t *testing.T) {
	for _, approve := range []bool{true, false} {
		f := newFakeRequests()
		s := newTestServer(f, nil)
		row := pendingRow(f)

		got, out := s.apply(context.Background(), humanVerdict{
			requestID: row.ID, approve: approve, resolvedBy: "slack:alice",
		})
		if out != outcomeResolved {
			t.Fatalf("approve=%v: outcome = %d", approve, out)
		}
		want := store.StatusRejected
		if approve {
			want = store.StatusApproved
		}
		if got.Status != want {
			t.Errorf("row status = %s, want %s", got.Status, want)
		}

		stored, _ := f.Get(context.Background(), row.ID)
		if stored.Status != want || stored.ResolvedBy != "slack:alice" {
			t.Errorf("stored = %+v", stored)
		}
	}
}

// TestApply_Rejections walks every gate in order.
func TestApply_Rejections(t *testing.T) {
	f := newFakeRequests()
	s := newTestServer(f, nil)

	t.Run("malformed id", func(t *testing.T) {
		if _, out := s.apply(context.Background(), humanVerdict{requestID: "../etc/passwd"}); out != outcomeBadRequest {
			t.Errorf("outcome = %d", out)
		}
	})

	t.Run("non-v4 uuid", func(t *testing.T) {
		v1 := "a6e9dd26-0663-11ef-9f5a-0242ac120002"
		if _, out := s.apply(context.Background(), humanVerdict{requestID: v1}); out != outcomeBadRequest {
			t.Errorf("outcome = %d", out)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, out := s.apply(context.Background(), humanVerdict{requestID: uuid.NewString()}); out != outcomeNotFound {
			t.Errorf("outcome = %d", out)
		}
	})

	t.Run("already resolved", func(t *testing.T) {
		row := pendingRow(f)
		row.Status = store.StatusApproved
		f.put(row)
		if _, out := s.apply(context.Background(), humanVerdict{requestID: row.ID, approve: true}); out != outcomeAlreadyResolved {
			t.Errorf("outcome = %d", out)
		}
	})

	t.Run("expired row", func(t *testing.T) {
		row := pendingRow(f)
		row.CreatedAt = testNow.Add(-store.RowFreshness - time.Second)
		f.put(row)
		if _, out := s.apply(context.Background(), humanVerdict{requestID: row.ID, approve: true}); out != outcomeExpired {
			t.Errorf("outcome = %d", out)
		}
	})

	t.Run("forged machine id", func(t *testing.T) {
		row := pendingRow(f)
		row.MachineID = identity.Sign("wrong-secret", strings.Repeat("ab", 16), testNow)
		f.put(row)
		if _, out := s.apply(context.Background(), humanVerdict{requestID: row.ID, approve: true}); out != outcomeForbidden {
			t.Errorf("outcome = %d", out)
		}
	})

	t.Run("concurrent verdict", func(t *testing.T) {
		row := pendingRow(f)
		f.resolveZero = true
		defer func() { f.resolveZero = false }()
		if _, out := s.apply(context.Background(), humanVerdict{requestID: row.ID, approve: true}); out != outcomeConflict {
			t.Errorf("outcome = %d", out)
		}
	})
}

// TestApply_NoSecretFallback verifies the format-only provenance check
// when the service has no machine secret configured.
func TestApply_NoSecretFallback(t *testing.T) {
	f := newFakeRequests()
	s := newTestServer(f, func(c *Config) { c.MachineIDSecret = "" })

	row := pendingRow(f)
	row.MachineID = strings.Repeat("cd", 16) // bare fingerprint
	f.put(row)
	if _, out := s.apply(context.Background(), humanVerdict{requestID: row.ID, approve: true}); out != outcomeResolved {
		t.Errorf("outcome = %d", out)
	}

	row2 := pendingRow(f)
	row2.MachineID = "not-a-fingerprint"
	f.put(row2)
	if _, out := s.apply(context.Background(), humanVerdict{requestID: row2.ID, approve: true}); out != outcomeForbidden {
		t.Errorf("outcome = %d", out)
	}
}

// TestCallerIP covers the proxy-header trust order.
func TestCallerIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Real-IP": "2.2.2.2"}, "9.9.9.9:1234", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "2.2.2.2", "X-Forwarded-For": "3.3.3.3"}, "9.9.9.9:1234", "2.2.2.2"},
		{"last xff hop", map[string]string{"X-Forwarded-For": "3.3.3.3, 4.4.4.4"}, "9.9.9.9:1234", "4.4.4.4"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/webhook/slack", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := callerIP(r); got != tt.want {
				t.Errorf("callerIP = %q, want %q", got, tt.want)
			}
		})
	}
}
