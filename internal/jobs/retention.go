package jobs

import (
	"context"
	"log/slog"
	"time"

	"scriptd/internal/config"
	"scriptd/internal/metrics"
)

// RetentionStats captures the number of jobs removed by TTL cleanup.
type RetentionStats struct {
	JobsDeleted int `json:"jobsDeleted"`
}

// CleanupExpiredJobs removes finished jobs older than the configured TTL
// so that the registry does not grow without bound.
func CleanupExpiredJobs(cfg *config.Config, reg *Registry, now time.Time) RetentionStats {
	var stats RetentionStats

	ttl := cfg.Retention.Jobs.TTLMinutes
	if ttl <= 0 {
		return stats
	}

	cutoff := now.Add(-time.Duration(ttl) * time.Minute)
	if n := reg.Sweep(cutoff); n > 0 {
		stats.JobsDeleted = n
		metrics.RecordRetentionJobs(int64(n))
	}
	return stats
}

// Janitor periodically applies retention to a registry.
type Janitor struct {
	cfg      *config.Config
	registry *Registry
	logger   *slog.Logger
}

func NewJanitor(cfg *config.Config, reg *Registry, logger *slog.Logger) *Janitor {
	return &Janitor{cfg: cfg, registry: reg, logger: logger}
}

// Start runs the cleanup loop in the current goroutine until ctx ends.
// It returns immediately when retention is disabled.
func (j *Janitor) Start(ctx context.Context) {
	if !j.cfg.Retention.Enabled {
		return
	}

	interval := time.Duration(j.cfg.Retention.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats := CleanupExpiredJobs(j.cfg, j.registry, time.Now().UTC())
		if stats.JobsDeleted > 0 && j.logger != nil {
			j.logger.Info("retention_cleanup", "jobs_deleted", stats.JobsDeleted)
		}
	}
}
