package core

// scheduler.go runs background maintenance for the session cache.
//
// The session metadata store expires entries by itself, but the blob area
// holding the row sets does not. The sweep job removes blobs and metadata
// older than the session TTL so abandoned uploads do not accumulate.
//
// The scheduler is long-running and context-aware for graceful shutdown.
// A failed sweep is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig holds configuration for the sweep scheduler.
type SweepConfig struct {
	MaxAge        time.Duration // Sessions older than this are removed (default: 2h)
	CheckInterval time.Duration // How often to run (default: 15m)
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.MaxAge <= 0 {
		c.MaxAge = 2 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 15 * time.Minute
	}
	return c
}

// StartSweepScheduler removes expired session data immediately, then every
// CheckInterval, until ctx is cancelled.
func (s *Service) StartSweepScheduler(ctx context.Context, cfg SweepConfig) {
	cfg = cfg.withDefaults()
	slog.Info("session sweeper started",
		"max_age", cfg.MaxAge.String(),
		"interval", cfg.CheckInterval.String(),
	)

	s.runSweepJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.runSweepJob(ctx, cfg)
		}
	}
}

// runSweepJob performs one sweep cycle.
func (s *Service) runSweepJob(ctx context.Context, cfg SweepConfig) {
	start := time.Now()
	removed, err := s.sessions.Sweep(ctx, cfg.MaxAge)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("expired sessions removed",
			"sessions_removed", removed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	slog.Debug("session sweep found nothing to remove", "duration_ms", time.Since(start).Milliseconds())
}
