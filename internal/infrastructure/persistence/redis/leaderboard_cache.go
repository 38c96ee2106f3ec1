// Package redis implements the Redis leaderboard cache. It is a
// staleness-reduction layer only: every read degrades to Postgres when the
// cache is cold, disabled, or unreachable.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when the requested page is not cached.
	ErrCacheMiss = errors.New("leaderboard_cache: cache miss")

	// ErrCacheDisabled is returned when the cache was constructed without a client.
	ErrCacheDisabled = errors.New("leaderboard_cache: cache disabled")
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// NewClient creates and pings a Redis client.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to ping: %w", err)
	}

	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one cached leaderboard row. Rank is 1-based.
type Entry struct {
	Rank           int       `json:"rank"`
	StudentID      string    `json:"student_id"`
	XP             int       `json:"xp"`
	Level          int       `json:"level"`
	Title          string    `json:"title"`
	Streak         int       `json:"streak"`
	LastActiveDate time.Time `json:"last_active_date,omitempty"`
}

// page is the serialized cache value.
type page struct {
	Entries   []Entry   `json:"entries"`
	Total     int       `json:"total"`
	BuiltAt   time.Time `json:"built_at"`
	BuiltFrom string    `json:"built_from"` // "write_path" or "worker"
}

// Key patterns for the leaderboard cache.
const (
	keyLeaderboardPage = "gamification:leaderboard:top"
)

// LeaderboardCache stores the ranked top-N page as a single JSON value.
//
// A sorted set cannot express the tie-break (earlier last_active_date wins at
// equal XP), so ranking stays in SQL and Redis holds the finished page.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates a LeaderboardCache. A nil client yields a
// disabled cache: Get always misses and Set is a no-op.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LeaderboardCache{client: client, ttl: ttl}
}

// Enabled reports whether the cache has a client.
func (c *LeaderboardCache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetTop returns up to limit cached entries. ErrCacheMiss means the caller
// should fall back to Postgres; the cached page may also be shorter than
// limit, in which case the caller falls back as well.
func (c *LeaderboardCache) GetTop(ctx context.Context, limit int) ([]Entry, int, error) {
	if !c.Enabled() {
		return nil, 0, ErrCacheDisabled
	}

	data, err := c.client.Get(ctx, keyLeaderboardPage).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, 0, ErrCacheMiss
		}
		return nil, 0, fmt.Errorf("failed to read leaderboard page: %w", err)
	}

	var p page
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal leaderboard page: %w", err)
	}

	if limit < len(p.Entries) {
		return p.Entries[:limit], p.Total, nil
	}
	if limit > len(p.Entries) && p.Total > len(p.Entries) {
		// Cached page is too short for this request.
		return nil, 0, ErrCacheMiss
	}
	return p.Entries, p.Total, nil
}

// SetTop stores the ranked page with the configured TTL.
func (c *LeaderboardCache) SetTop(ctx context.Context, entries []Entry, total int, source string) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}

	data, err := json.Marshal(page{
		Entries:   entries,
		Total:     total,
		BuiltAt:   time.Now().UTC(),
		BuiltFrom: source,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard page: %w", err)
	}

	if err := c.client.Set(ctx, keyLeaderboardPage, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write leaderboard page: %w", err)
	}

	return nil
}

// Invalidate drops the cached page. Called after writes that may reorder
// the top of the board.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}

	if err := c.client.Del(ctx, keyLeaderboardPage).Err(); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard page: %w", err)
	}

	return nil
}
