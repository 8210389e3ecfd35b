package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

const (
	// maxTrackedKeys caps the number of tracked callers to prevent memory
	// exhaustion from attackers rotating source IPs.
	maxTrackedKeys = 4096

	// rateLimitWindow is the sliding window for the shared counter.
	rateLimitWindow = 60 * time.Second

	// rateLimitBudget is the max callbacks per caller within a window.
	rateLimitBudget = 30
)

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter gates callback bursts per caller. A local token bucket absorbs
// the cheap floods; the shared event store makes the budget hold across
// service instances. Store errors fail open: a broken counter must not
// lock humans out of approving.
type Limiter struct {
	mu     sync.Mutex
	local  map[string]*limiterEntry
	events store.RateLimitStore
	now    func() time.Time
}

func NewLimiter(events store.RateLimitStore) *Limiter {
	return &Limiter{
		local:  make(map[string]*limiterEntry),
		events: events,
		now:    time.Now,
	}
}

// Allow reports whether the caller is within budget and records the event
// when it is.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if !l.allowLocal(key) {
		return false
	}
	if l.events == nil {
		return true
	}

	now := l.now()
	n, err := l.events.CountEvents(ctx, key, now.Add(-rateLimitWindow))
	if err != nil {
		slog.Warn("rate limit count failed, failing open", "error", err)
		return true
	}
	if n >= rateLimitBudget {
		return false
	}
	if err := l.events.RecordEvent(ctx, key, now); err != nil {
		slog.Warn("rate limit record failed", "error", err)
	}
	return true
}

func (l *Limiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	// Prune when approaching the cap, hard-evict if still full.
	if len(l.local) >= maxTrackedKeys {
		for k, e := range l.local {
			if now.Sub(e.lastSeen) >= rateLimitWindow {
				delete(l.local, k)
			}
		}
		for len(l.local) >= maxTrackedKeys {
			for k := range l.local {
				delete(l.local, k)
				break
			}
		}
	}

	e, ok := l.local[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Every(rateLimitWindow/rateLimitBudget), rateLimitBudget)}
		l.local[key] = e
	}
	e.lastSeen = now
	return e.lim.Allow()
}
