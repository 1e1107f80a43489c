package worker

import (
	"context"
	"log/slog"
	"time"
)

const sweepInterval = time.Hour

// SweepStore is the persistence slice consumed by SweepWorker.
type SweepStore interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
	SweepExpiredOAuthStates(ctx context.Context) (int64, error)
}

// SweepWorker periodically deletes expired sessions and OAuth states.
type SweepWorker struct {
	store SweepStore
}

// NewSweepWorker creates a new sweep worker.
func NewSweepWorker(store SweepStore) *SweepWorker {
	return &SweepWorker{store: store}
}

// Name returns the worker identifier.
func (w *SweepWorker) Name() string { return "sweep" }

// Run sweeps expired rows hourly until ctx is cancelled. It runs once
// immediately on start so a freshly deployed instance isn't left with
// stale rows for a full hour.
func (w *SweepWorker) Run(ctx context.Context) error {
	w.sweep(ctx)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	sessions, err := w.store.SweepExpiredSessions(ctx)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "session sweep failed", slog.String("error", err.Error()))
	} else if sessions > 0 {
		slog.Info("swept expired sessions", "count", sessions)
	}

	states, err := w.store.SweepExpiredOAuthStates(ctx)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "oauth state sweep failed", slog.String("error", err.Error()))
	} else if states > 0 {
		slog.Info("swept expired oauth states", "count", states)
	}
}
