package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

type stubHistory struct {
	entries []gamification.HistoryEntry
}

func (h *stubHistory) AppendHistory(_ context.Context, entry gamification.HistoryEntry) error {
	h.entries = append(h.entries, entry)
	return nil
}

func (h *stubHistory) History(_ context.Context, id gamification.StudentID, limit int) ([]gamification.HistoryEntry, error) {
	var out []gamification.HistoryEntry
	for i := len(h.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if h.entries[i].StudentID == id {
			out = append(out, h.entries[i])
		}
	}
	return out, nil
}

func TestGetGamification_DerivesLevelAtReadTime(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := makeRecord(t, "stu-1", 800, day)
	rec.Streak = 4
	rec.BestStreak = 9
	rec.Badges = []gamification.BadgeID{gamification.BadgeFirstLogin, gamification.BadgeStreak7}

	handler := NewGetGamificationHandler(newStubRepo(rec), nil)

	view, err := handler.Handle(context.Background(), GetGamificationQuery{StudentID: "stu-1"})
	require.NoError(t, err)

	assert.Equal(t, 800, view.XP)
	assert.Equal(t, 4, view.Level)
	assert.Equal(t, "Scholar", view.Title)
	assert.Equal(t, 1500, view.NextLevelXP)
	assert.Equal(t, 4, view.Streak)
	assert.Equal(t, 9, view.BestStreak)

	require.Len(t, view.Badges, 2)
	assert.Equal(t, "First Steps", view.Badges[0].Name)
	assert.Equal(t, "Week of Fire", view.Badges[1].Name)
}

func TestGetGamification_MaxLevelProgress(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := makeRecord(t, "stu-1", 12500, day)
	handler := NewGetGamificationHandler(newStubRepo(rec), nil)

	view, err := handler.Handle(context.Background(), GetGamificationQuery{StudentID: "stu-1"})
	require.NoError(t, err)

	assert.Equal(t, 10, view.Level)
	assert.Equal(t, "Legend", view.Title)
	assert.InDelta(t, 100, view.ProgressPercent, 0.001)
	assert.Zero(t, view.NextLevelXP)
}

func TestGetGamification_StreakAtRiskFlag(t *testing.T) {
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	rec := makeRecord(t, "stu-1", 100, yesterday)
	rec.Streak = 5
	handler := NewGetGamificationHandler(newStubRepo(rec), nil)

	view, err := handler.Handle(context.Background(), GetGamificationQuery{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.True(t, view.StreakAtRisk)
}

func TestGetGamification_UnknownStudent(t *testing.T) {
	handler := NewGetGamificationHandler(newStubRepo(), nil)

	_, err := handler.Handle(context.Background(), GetGamificationQuery{StudentID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrRecordNotFound)
}

func TestGetGamification_IncludesRecentHistory(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := makeRecord(t, "stu-1", 60, day)

	history := &stubHistory{}
	for i, amount := range []int{10, 20, 30} {
		require.NoError(t, history.AppendHistory(context.Background(), gamification.HistoryEntry{
			StudentID: "stu-1",
			Amount:    gamification.XP(amount),
			Reason:    gamification.ReasonQuizCompletion,
			NewTotal:  gamification.XP(10 * (i + 1)),
			AwardedAt: day.Add(time.Duration(i) * time.Hour),
		}))
	}

	handler := NewGetGamificationHandler(newStubRepo(rec), history)

	view, err := handler.Handle(context.Background(), GetGamificationQuery{StudentID: "stu-1", HistoryLimit: 2})
	require.NoError(t, err)

	require.Len(t, view.History, 2)
	assert.Equal(t, 30, view.History[0].Amount, "history is newest first")
	assert.Equal(t, 20, view.History[1].Amount)
}

func TestGetGamification_SkipsUnknownStoredBadges(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := makeRecord(t, "stu-1", 100, day)
	rec.Badges = []gamification.BadgeID{"retired_badge", gamification.BadgeFirstLogin}

	handler := NewGetGamificationHandler(newStubRepo(rec), nil)

	view, err := handler.Handle(context.Background(), GetGamificationQuery{StudentID: "stu-1"})
	require.NoError(t, err)
	require.Len(t, view.Badges, 1)
	assert.Equal(t, string(gamification.BadgeFirstLogin), view.Badges[0].ID)
}
