package core

// scheduler.go runs background maintenance.
//
// Audit rows pile up with every applied row, so a retention job deletes
// entries older than the configured window. It runs once on start and then
// every CheckInterval until ctx is cancelled. A failed pass is logged and
// retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// Default retention settings.
const (
	DefaultAuditRetentionDays = 365
	DefaultRetentionBatchSize = 5000
	DefaultRetentionInterval  = 24 * time.Hour
)

// AuditPurger deletes audit entries created before cutoff, at most limit
// rows per call, and returns how many were removed.
type AuditPurger interface {
	PurgeAudit(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// RetentionConfig controls the audit retention job. Zero values take the
// defaults.
type RetentionConfig struct {
	RetentionDays int
	BatchSize     int
	CheckInterval time.Duration
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = DefaultAuditRetentionDays
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultRetentionBatchSize
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultRetentionInterval
	}
	return c
}

// StartRetentionScheduler blocks, purging old audit entries periodically
// until ctx is done. Run it in its own goroutine.
func StartRetentionScheduler(ctx context.Context, purger AuditPurger, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"batch_size", cfg.BatchSize,
		"interval", cfg.CheckInterval,
	)

	RunRetention(ctx, purger, cfg, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention scheduler stopped")
			return
		case now := <-ticker.C:
			RunRetention(ctx, purger, cfg, now)
		}
	}
}

// RunRetention performs one purge pass, deleting in batches until a batch
// comes back short. It returns the number of rows removed.
func RunRetention(ctx context.Context, purger AuditPurger, cfg RetentionConfig, now time.Time) int64 {
	cfg = cfg.withDefaults()
	cutoff := now.AddDate(0, 0, -cfg.RetentionDays)
	start := time.Now()

	var total int64
	for {
		n, err := purger.PurgeAudit(ctx, cutoff, cfg.BatchSize)
		if err != nil {
			slog.Error("audit purge failed", "error", err, "purged", total)
			return total
		}
		total += n
		if n < int64(cfg.BatchSize) || ctx.Err() != nil {
			break
		}
	}

	slog.Info("audit purge completed",
		"purged", total,
		"cutoff", cutoff.Format(time.DateOnly),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return total
}
