package webhook

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

type fakeEvents struct {
	counts   map[string]int
	countErr error
}

func (f *fakeEvents) RecordEvent(_ context.Context, id string, _ time.Time) error {
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[id]++
	return nil
}

func (f *fakeEvents) CountEvents(_ context.Context, id string, _ time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[id], nil
}

func (f *fakeEvents) DeleteEventsBefore(context.Context, time.Time) (int64, error) { return 0, nil }

var _ store.RateLimitStore = (*fakeEvents)(nil)

// TestLimiter_BudgetEnforced verifies the caller is cut off at the shared
// budget and other callers are unaffected.
func TestLimiter_BudgetEnforced(t *testing.T) {
	l := NewLimiter(&fakeEvents{})
	ctx := context.Background()

	allowed := 0
	for i := 0; i < rateLimitBudget+10; i++ {
		if l.Allow(ctx, "1.2.3.4") {
			allowed++
		}
	}
	if allowed != rateLimitBudget {
		t.Errorf("allowed %d requests, want %d", allowed, rateLimitBudget)
	}

	if !l.Allow(ctx, "5.6.7.8") {
		t.Error("unrelated caller was limited")
	}
}

// TestLimiter_FailsOpenOnStoreError verifies a broken counter does not
// lock humans out.
func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	l := NewLimiter(&fakeEvents{countErr: errors.New("connection refused")})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !l.Allow(ctx, "1.2.3.4") {
			t.Fatal("limiter closed on store error")
		}
	}
}

// TestLimiter_NoStore verifies the local bucket alone still bounds
// bursts.
func TestLimiter_NoStore(t *testing.T) {
	l := NewLimiter(nil)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < rateLimitBudget*2; i++ {
		if l.Allow(ctx, "1.2.3.4") {
			allowed++
		}
	}
	if allowed > rateLimitBudget {
		t.Errorf("local bucket allowed %d, budget %d", allowed, rateLimitBudget)
	}
}

// TestLimiter_TrackedKeysBounded verifies rotating callers cannot grow
// the map without bound.
func TestLimiter_TrackedKeysBounded(t *testing.T) {
	l := NewLimiter(nil)
	ctx := context.Background()

	for i := 0; i < maxTrackedKeys+100; i++ {
		l.Allow(ctx, "10.0."+strconv.Itoa(i/256)+"."+strconv.Itoa(i%256))
	}

	l.mu.Lock()
	n := len(l.local)
	l.mu.Unlock()
	if n > maxTrackedKeys {
		t.Errorf("tracked %d keys, cap %d", n, maxTrackedKeys)
	}
}
