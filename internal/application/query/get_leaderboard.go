package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Returns the top students by XP. Ties go to the student who was active
// earlier. Reads prefer the cache and degrade to storage.
// ══════════════════════════════════════════════════════════════════════════════

// Limit bounds for the leaderboard query.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// GetLeaderboardQuery contains the query parameters.
type GetLeaderboardQuery struct {
	// Limit is how many entries to return. Zero means the default; values
	// above the maximum are an error.
	Limit int
}

// Validate validates the query.
func (q GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 || q.Limit > MaxLeaderboardLimit {
		return shared.ErrInvalidLimit
	}
	return nil
}

// LeaderboardEntry is one ranked row of the board.
type LeaderboardEntry struct {
	Rank           int        `json:"rank"`
	StudentID      string     `json:"student_id"`
	XP             int        `json:"xp"`
	Level          int        `json:"level"`
	Title          string     `json:"title"`
	Streak         int        `json:"streak"`
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
}

// LeaderboardView is the full query result.
type LeaderboardView struct {
	Entries []LeaderboardEntry `json:"entries"`

	// Total is how many students have records, not just the page size.
	Total int `json:"total"`

	// FromCache reports whether the page came from the cache.
	FromCache bool `json:"-"`
}

// LeaderboardCache is the read-side cache port. Any error from GetTop
// degrades the read to storage.
type LeaderboardCache interface {
	GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, int, error)
	SetTop(ctx context.Context, entries []LeaderboardEntry, total int) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardHandler handles the GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	repo   gamification.Repository
	cache  LeaderboardCache
	logger *slog.Logger
}

// NewGetLeaderboardHandler creates a new handler. Cache may be nil.
func NewGetLeaderboardHandler(repo gamification.Repository, cache LeaderboardCache, logger *slog.Logger) *GetLeaderboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLeaderboardHandler{repo: repo, cache: cache, logger: logger}
}

// Handle executes the query. An empty board is a valid result with zero
// entries, not an error.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*LeaderboardView, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLeaderboardLimit
	}

	if h.cache != nil {
		entries, total, err := h.cache.GetTop(ctx, limit)
		if err == nil {
			return &LeaderboardView{Entries: entries, Total: total, FromCache: true}, nil
		}
	}

	records, err := h.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	total, err := h.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	// Storage already orders the page; the sort is an invariant check
	// against repository implementations that do not.
	sort.SliceStable(records, func(i, j int) bool {
		return gamification.CompareForLeaderboard(records[i], records[j]) < 0
	})

	entries := make([]LeaderboardEntry, len(records))
	for i, rec := range records {
		info := rec.Level()
		entries[i] = LeaderboardEntry{
			Rank:      i + 1,
			StudentID: rec.StudentID.String(),
			XP:        int(rec.XP),
			Level:     info.Level,
			Title:     info.Title,
			Streak:    rec.Streak,
		}
		if !rec.LastActiveDate.IsZero() {
			d := rec.LastActiveDate
			entries[i].LastActiveDate = &d
		}
	}

	if h.cache != nil {
		if err := h.cache.SetTop(ctx, entries, total); err != nil {
			h.logger.Debug("failed to backfill leaderboard cache", "error", err)
		}
	}

	return &LeaderboardView{Entries: entries, Total: total}, nil
}
