package worker

import (
	"context"
	"log/slog"
	"time"
)

// SessionStore defines the store operations needed by the session sweeper.
type SessionStore interface {
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionSweeper purges sessions older than the configured TTL so stolen
// or forgotten cookies eventually die on their own.
type SessionSweeper struct {
	store    SessionStore
	interval time.Duration
	ttl      time.Duration
}

// NewSessionSweeper creates a sweeper with the given store, sweep interval,
// and session TTL.
func NewSessionSweeper(store SessionStore, interval, ttl time.Duration) *SessionSweeper {
	return &SessionSweeper{
		store:    store,
		interval: interval,
		ttl:      ttl,
	}
}

// Run starts the sweeper loop. Sweeps immediately on start, then on each
// interval. Respects context cancellation for graceful shutdown.
func (w *SessionSweeper) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "session-sweeper",
		"interval", w.interval.String(),
		"ttl", w.ttl.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "session-sweeper",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep deletes expired sessions and logs any errors.
func (w *SessionSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.ttl)

	removed, err := w.store.DeleteSessionsBefore(ctx, cutoff)
	if err != nil {
		// Check if it's a context cancellation (graceful shutdown)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("session sweep failed",
			"component", "worker",
			"action", "sweep_failed",
			"error", err,
		)
		return
	}

	if removed > 0 {
		slog.Info("expired sessions removed",
			"component", "worker",
			"action", "sweep_complete",
			"removed", removed,
		)
	}
}
