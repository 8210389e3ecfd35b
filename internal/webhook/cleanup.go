package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/cmdgate/internal/store"
)

// RunCleanup deletes expired approval rows and stale rate-limit events on
// the configured cron schedule. Blocks until ctx is cancelled.
func RunCleanup(ctx context.Context, schedule string, requests store.RequestStore, events store.RateLimitStore) {
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		slog.Error("invalid cleanup schedule, cleanup disabled", "schedule", schedule)
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			due, err := gron.IsDue(schedule, tick)
			if err != nil || !due {
				continue
			}
			sweep(ctx, requests, events)
		}
	}
}

func sweep(ctx context.Context, requests store.RequestStore, events store.RateLimitStore) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()
	if n, err := requests.DeleteOlderThan(ctx, now.Add(-store.RowRetention)); err != nil {
		slog.Error("approval row cleanup failed", "error", err)
	} else if n > 0 {
		slog.Info("approval rows cleaned", "deleted", n)
	}

	if events == nil {
		return
	}
	// Events are only meaningful inside the counting window; keep a few
	// windows for debugging.
	if n, err := events.DeleteEventsBefore(ctx, now.Add(-10*rateLimitWindow)); err != nil {
		slog.Error("rate limit event cleanup failed", "error", err)
	} else if n > 0 {
		slog.Info("rate limit events cleaned", "deleted", n)
	}
}
