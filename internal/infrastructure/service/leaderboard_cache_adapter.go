// Package service contains adapters that bind infrastructure clients to the
// ports the application layer defines.
package service

import (
	"context"
	"fmt"

	"github.com/tutorlink/tutorlink-gamification/config"
	"github.com/tutorlink/tutorlink-gamification/internal/application/query"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/persistence/redis"
)

// LeaderboardCacheAdapter implements query.LeaderboardCache and the write
// side's invalidator over the Redis page cache. The feature flag gates reads
// only: invalidation always runs so a re-enabled cache never serves a page
// from before the flag was turned off.
type LeaderboardCacheAdapter struct {
	cache *redis.LeaderboardCache
	flags *config.FeatureFlags
}

// NewLeaderboardCacheAdapter creates a new adapter. Flags may be nil.
func NewLeaderboardCacheAdapter(cache *redis.LeaderboardCache, flags *config.FeatureFlags) *LeaderboardCacheAdapter {
	return &LeaderboardCacheAdapter{cache: cache, flags: flags}
}

// GetTop implements query.LeaderboardCache.
func (a *LeaderboardCacheAdapter) GetTop(ctx context.Context, limit int) ([]query.LeaderboardEntry, int, error) {
	if !a.readEnabled() {
		return nil, 0, shared.ErrLeaderboardCacheOff
	}

	entries, total, err := a.cache.GetTop(ctx, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("leaderboard cache read: %w", err)
	}

	out := make([]query.LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = query.LeaderboardEntry{
			Rank:      e.Rank,
			StudentID: e.StudentID,
			XP:        e.XP,
			Level:     e.Level,
			Title:     e.Title,
			Streak:    e.Streak,
		}
		if !e.LastActiveDate.IsZero() {
			d := e.LastActiveDate
			out[i].LastActiveDate = &d
		}
	}
	return out, total, nil
}

// SetTop implements query.LeaderboardCache.
func (a *LeaderboardCacheAdapter) SetTop(ctx context.Context, entries []query.LeaderboardEntry, total int) error {
	if !a.readEnabled() {
		return shared.ErrLeaderboardCacheOff
	}

	page := make([]redis.Entry, len(entries))
	for i, e := range entries {
		page[i] = redis.Entry{
			Rank:      e.Rank,
			StudentID: e.StudentID,
			XP:        e.XP,
			Level:     e.Level,
			Title:     e.Title,
			Streak:    e.Streak,
		}
		if e.LastActiveDate != nil {
			page[i].LastActiveDate = *e.LastActiveDate
		}
	}
	return a.cache.SetTop(ctx, page, total, "read_path")
}

// Invalidate implements the write side's invalidator port.
func (a *LeaderboardCacheAdapter) Invalidate(ctx context.Context) error {
	return a.cache.Invalidate(ctx)
}

func (a *LeaderboardCacheAdapter) readEnabled() bool {
	if !a.cache.Enabled() {
		return false
	}
	if a.flags == nil {
		return true
	}
	return a.flags.IsEnabled(config.FeatureLeaderboardCache, "")
}
