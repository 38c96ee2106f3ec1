// Package jobs contains the scheduled jobs of the gamification worker.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/persistence/redis"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardJob refreshes the cached leaderboard page from Postgres.
// The write path invalidates the cache on award; this job keeps the page warm
// so read traffic rarely hits the ranking query.
type RebuildLeaderboardJob struct {
	repo      gamification.Repository
	cache     *redis.LeaderboardCache
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    RebuildLeaderboardConfig

	lastStats atomic.Value // *RebuildStats
}

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// TopN is how many entries the cached page holds.
	TopN int

	// Timeout is the maximum duration for one rebuild.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		TopN:    100,
		Timeout: time.Minute,
	}
}

// RebuildStats contains statistics from the last rebuild run.
type RebuildStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Entries     int
	Total       int
}

// NewRebuildLeaderboardJob creates a new rebuild job.
func NewRebuildLeaderboardJob(
	repo gamification.Repository,
	cache *redis.LeaderboardCache,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.TopN <= 0 {
		config.TopN = 100
	}

	return &RebuildLeaderboardJob{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Refreshes the cached leaderboard page from storage"
}

// Run executes one rebuild.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	if !j.cache.Enabled() {
		j.logger.Debug("leaderboard cache disabled, skipping rebuild")
		return nil
	}

	startedAt := time.Now()

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	records, err := j.repo.Leaderboard(ctx, j.config.TopN)
	if err != nil {
		return fmt.Errorf("failed to load leaderboard: %w", err)
	}

	total, err := j.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count records: %w", err)
	}

	entries := make([]redis.Entry, len(records))
	for i, rec := range records {
		info := rec.Level()
		entries[i] = redis.Entry{
			Rank:           i + 1,
			StudentID:      rec.StudentID.String(),
			XP:             int(rec.XP),
			Level:          info.Level,
			Title:          info.Title,
			Streak:         rec.Streak,
			LastActiveDate: rec.LastActiveDate,
		}
	}

	if err := j.cache.SetTop(ctx, entries, total, "worker"); err != nil {
		return fmt.Errorf("failed to cache leaderboard: %w", err)
	}

	duration := time.Since(startedAt)
	j.lastStats.Store(&RebuildStats{
		StartedAt:   startedAt,
		CompletedAt: startedAt.Add(duration),
		Duration:    duration,
		Entries:     len(entries),
		Total:       total,
	})

	if j.publisher != nil {
		if err := j.publisher.Publish(shared.NewLeaderboardRebuiltEvent(len(entries), duration)); err != nil {
			j.logger.Warn("failed to publish rebuild event", "error", err)
		}
	}

	j.logger.Info("leaderboard cache rebuilt",
		"entries", len(entries),
		"total", total,
		"duration", duration.String(),
	)

	return nil
}

// LastStats returns statistics from the most recent run.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RebuildStats)
}
