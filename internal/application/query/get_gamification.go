// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GAMIFICATION QUERY
// Returns the full gamification state of one student. Level and title are
// derived from stored XP at read time, never read from storage.
// ══════════════════════════════════════════════════════════════════════════════

// GetGamificationQuery contains the query parameters.
type GetGamificationQuery struct {
	// StudentID is the ID of the student.
	StudentID string

	// HistoryLimit is how many recent XP awards to include. Zero skips the
	// history lookup.
	HistoryLimit int
}

// Validate validates the query.
func (q GetGamificationQuery) Validate() error {
	if !gamification.StudentID(q.StudentID).IsValid() {
		return shared.ErrInvalidStudentID
	}
	return nil
}

// BadgeView is one unlocked badge with its catalog metadata.
type BadgeView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// HistoryView is one recent XP award.
type HistoryView struct {
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	NewTotal  int       `json:"new_total"`
	AwardedAt time.Time `json:"awarded_at"`
}

// GamificationView is the read model for one student.
type GamificationView struct {
	StudentID string `json:"student_id"`

	XP    int    `json:"xp"`
	Level int    `json:"level"`
	Title string `json:"title"`

	// ProgressPercent is how far the student is into the current level.
	// 100 at the level cap.
	ProgressPercent float64 `json:"progress_percent"`
	NextLevelXP     int     `json:"next_level_xp,omitempty"`

	Streak         int        `json:"streak"`
	BestStreak     int        `json:"best_streak"`
	LastActiveDate *time.Time `json:"last_active_date,omitempty"`
	StreakAtRisk   bool       `json:"streak_at_risk"`

	Badges []BadgeView `json:"badges"`

	TotalLogins      int `json:"total_logins"`
	QuizzesCompleted int `json:"quizzes_completed"`
	SessionsAttended int `json:"sessions_attended"`
	ReviewsWritten   int `json:"reviews_written"`

	History []HistoryView `json:"history,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetGamificationHandler handles the GetGamificationQuery.
type GetGamificationHandler struct {
	repo    gamification.Repository
	history gamification.HistoryRepository
}

// NewGetGamificationHandler creates a new handler. History may be nil.
func NewGetGamificationHandler(repo gamification.Repository, history gamification.HistoryRepository) *GetGamificationHandler {
	return &GetGamificationHandler{repo: repo, history: history}
}

// Handle executes the query. Returns shared.ErrRecordNotFound for students
// who have never logged in.
func (h *GetGamificationHandler) Handle(ctx context.Context, q GetGamificationQuery) (*GamificationView, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_gamification: %w", err)
	}

	rec, err := h.repo.Get(ctx, gamification.StudentID(q.StudentID))
	if err != nil {
		return nil, fmt.Errorf("get_gamification: %w", err)
	}

	view := BuildView(rec, time.Now().UTC())

	if h.history != nil && q.HistoryLimit > 0 {
		entries, err := h.history.History(ctx, rec.StudentID, q.HistoryLimit)
		if err == nil {
			view.History = make([]HistoryView, len(entries))
			for i, e := range entries {
				view.History[i] = HistoryView{
					Amount:    int(e.Amount),
					Reason:    string(e.Reason),
					NewTotal:  int(e.NewTotal),
					AwardedAt: e.AwardedAt,
				}
			}
		}
	}

	return view, nil
}

// BuildView maps a record to its read model.
func BuildView(rec *gamification.Record, now time.Time) *GamificationView {
	info := rec.Level()
	progress := rec.Progress()

	view := &GamificationView{
		StudentID:        rec.StudentID.String(),
		XP:               int(rec.XP),
		Level:            info.Level,
		Title:            info.Title,
		ProgressPercent:  progress.Percent,
		Streak:           rec.Streak,
		BestStreak:       rec.BestStreak,
		StreakAtRisk:     rec.StreakAtRisk(now),
		Badges:           badgeViews(rec.Badges),
		TotalLogins:      rec.TotalLogins,
		QuizzesCompleted: rec.QuizzesCompleted,
		SessionsAttended: rec.SessionsAttended,
		ReviewsWritten:   rec.ReviewsWritten,
	}

	if !progress.AtMax {
		view.NextLevelXP = int(progress.NextThreshold)
	}
	if !rec.LastActiveDate.IsZero() {
		d := rec.LastActiveDate
		view.LastActiveDate = &d
	}

	return view
}

func badgeViews(ids []gamification.BadgeID) []BadgeView {
	views := make([]BadgeView, 0, len(ids))
	for _, id := range ids {
		badge, ok := gamification.BadgeByID(id)
		if !ok {
			// Unknown IDs in storage are skipped rather than surfaced.
			continue
		}
		views = append(views, BadgeView{
			ID:   string(badge.ID),
			Name: badge.Name,
			Icon: badge.Icon,
		})
	}
	return views
}
