package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

func newAwardHandler(t *testing.T) (*AwardXPHandler, *fakeRepo, *fakeHistory, *recordingBus, *countingInvalidator) {
	t.Helper()
	repo := newFakeRepo()
	history := &fakeHistory{}
	bus := &recordingBus{}
	inv := &countingInvalidator{}
	return NewAwardXPHandler(repo, history, bus, inv, nil), repo, history, bus, inv
}

func seedRecord(t *testing.T, repo *fakeRepo, id gamification.StudentID, xp int) {
	t.Helper()
	rec, err := gamification.NewRecord(id, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	rec.XP = gamification.XP(xp)
	require.NoError(t, repo.Create(context.Background(), rec))
}

func TestAwardXP_AddsXPAndRecordsHistory(t *testing.T) {
	handler, repo, history, _, inv := newAwardHandler(t)
	seedRecord(t, repo, "stu-1", 50)

	res, err := handler.Handle(context.Background(), AwardXPCommand{
		StudentID: "stu-1",
		Amount:    25,
		Reason:    string(gamification.ReasonQuizCompletion),
	})
	require.NoError(t, err)

	assert.Equal(t, gamification.XP(75), res.Outcome.NewTotal)
	assert.False(t, res.Outcome.LeveledUp)
	assert.Equal(t, 1, res.Record.QuizzesCompleted)
	assert.Equal(t, 1, inv.calls)

	entries, err := history.History(context.Background(), "stu-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, gamification.XP(25), entries[0].Amount)
	assert.Equal(t, gamification.ReasonQuizCompletion, entries[0].Reason)
}

func TestAwardXP_LevelUpEventSequence(t *testing.T) {
	handler, repo, _, bus, _ := newAwardHandler(t)
	seedRecord(t, repo, "stu-1", 300) // level 3

	res, err := handler.Handle(context.Background(), AwardXPCommand{
		StudentID: "stu-1",
		Amount:    500,
		Reason:    string(gamification.ReasonBonus),
	})
	require.NoError(t, err)

	// 800 XP is exactly the level 4 threshold.
	assert.True(t, res.Outcome.LeveledUp)
	assert.Equal(t, 4, res.Outcome.LevelAfter.Level)
	assert.Equal(t, "Scholar", res.Outcome.LevelAfter.Title)

	types := bus.types()
	require.GreaterOrEqual(t, len(types), 2)
	assert.Equal(t, shared.EventXPAwarded, types[0])
	assert.Equal(t, shared.EventLevelUp, types[1])

	xpEvent, ok := bus.events[0].(shared.XPAwardedEvent)
	require.True(t, ok)
	assert.True(t, xpEvent.LeveledUp)
	assert.Equal(t, 4, xpEvent.NewLevel)
	assert.Equal(t, "Scholar", xpEvent.NewTitle)
}

func TestAwardXP_BadgeUnlockEvents(t *testing.T) {
	handler, repo, _, bus, _ := newAwardHandler(t)
	seedRecord(t, repo, "stu-1", 980)

	_, err := handler.Handle(context.Background(), AwardXPCommand{
		StudentID: "stu-1",
		Amount:    40,
		Reason:    string(gamification.ReasonBonus),
	})
	require.NoError(t, err)

	// 1020 XP crosses the point collector threshold.
	types := bus.types()
	assert.Contains(t, types, shared.EventBadgeUnlocked)

	var badgeEvent shared.BadgeUnlockedEvent
	for _, e := range bus.events {
		if be, ok := e.(shared.BadgeUnlockedEvent); ok {
			badgeEvent = be
		}
	}
	assert.Equal(t, string(gamification.BadgeXP1000), badgeEvent.BadgeID)
}

func TestAwardXP_MissingRecord(t *testing.T) {
	handler, _, _, _, _ := newAwardHandler(t)

	_, err := handler.Handle(context.Background(), AwardXPCommand{
		StudentID: "ghost",
		Amount:    10,
		Reason:    string(gamification.ReasonBonus),
	})
	assert.ErrorIs(t, err, shared.ErrRecordNotFound)
}

func TestAwardXP_ValidationFailsBeforeStorage(t *testing.T) {
	handler, repo, _, bus, inv := newAwardHandler(t)
	seedRecord(t, repo, "stu-1", 50)

	tests := []struct {
		name string
		cmd  AwardXPCommand
		want error
	}{
		{"zero amount", AwardXPCommand{StudentID: "stu-1", Amount: 0, Reason: "bonus"}, shared.ErrInvalidXPAmount},
		{"negative amount", AwardXPCommand{StudentID: "stu-1", Amount: -5, Reason: "bonus"}, shared.ErrInvalidXPAmount},
		{"unknown reason", AwardXPCommand{StudentID: "stu-1", Amount: 10, Reason: "hacked"}, shared.ErrInvalidAwardReason},
		{"bad student id", AwardXPCommand{StudentID: "", Amount: 10, Reason: "bonus"}, shared.ErrInvalidStudentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	stored, err := repo.Get(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, gamification.XP(50), stored.XP, "failed awards must not change XP")
	assert.Empty(t, bus.types())
	assert.Zero(t, inv.calls)
}
