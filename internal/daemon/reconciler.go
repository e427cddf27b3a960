package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/multiwin/internal/platform"
)

// ReconcileFunc drops registered windows whose surfaces have vanished and
// returns their ids.
type ReconcileFunc func() []platform.WindowID

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically checks that every registered window still has a
// surface. It covers close events the display server never delivered.
type Reconciler struct {
	interval time.Duration
	exec     func(ctx context.Context, fn func()) error
	check    ReconcileFunc
	logger   *slog.Logger
}

// NewReconciler creates a reconciler that runs check through exec.
func NewReconciler(cfg ReconcilerConfig, exec func(ctx context.Context, fn func()) error, check ReconcileFunc) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Reconciler{
		interval: interval,
		exec:     exec,
		check:    check,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.ReconcileNow(ctx)
		}
	}
}

// ReconcileNow performs a single reconciliation pass and returns the dropped
// ids.
func (r *Reconciler) ReconcileNow(ctx context.Context) []platform.WindowID {
	var stale []platform.WindowID
	err := r.exec(ctx, func() {
		// Recover from panics to prevent crashing the daemon
		defer func() {
			if err := recover(); err != nil {
				r.logger.Error("reconciler panic recovered", "error", err)
			}
		}()
		stale = r.check()
	})
	if err != nil {
		r.logger.Debug("reconcile skipped", "error", err)
		return nil
	}
	if len(stale) > 0 {
		r.logger.Info("reconciler: dropped windows without surfaces", "windows", stale)
	}
	return stale
}
