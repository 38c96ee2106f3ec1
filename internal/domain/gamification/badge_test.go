package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-gamification/pkg/timeutil"
)

func TestCatalog_UniqueIDs(t *testing.T) {
	seen := make(map[BadgeID]bool)
	for _, b := range Catalog() {
		assert.False(t, seen[b.ID], "duplicate badge ID %q", b.ID)
		assert.NotEmpty(t, b.Name)
		assert.NotEmpty(t, b.Icon)
		assert.NotNil(t, b.Predicate)
		seen[b.ID] = true
	}
}

func TestBadgeByID(t *testing.T) {
	b, ok := BadgeByID(BadgeQuiz10)
	require.True(t, ok)
	assert.Equal(t, "Quiz Whiz", b.Name)

	_, ok = BadgeByID("no_such_badge")
	assert.False(t, ok)
}

func TestEvaluateBadges_SkipsUnlocked(t *testing.T) {
	r := newTestRecord(t)
	r.TotalLogins = 1

	first := EvaluateBadges(r)
	assert.Equal(t, []BadgeID{BadgeFirstLogin}, first)

	// Unlock and re-evaluate: nothing new.
	r.Badges = append(r.Badges, BadgeFirstLogin)
	assert.Empty(t, EvaluateBadges(r))
}

func TestEvaluateBadges_DoesNotMutate(t *testing.T) {
	r := newTestRecord(t)
	r.QuizzesCompleted = 10

	_ = EvaluateBadges(r)
	assert.Empty(t, r.Badges, "EvaluateBadges must not unlock")
}

func TestBadges_AppendOnlyThroughAwards(t *testing.T) {
	r := newTestRecord(t)

	// Ten quiz completions unlock quiz_10.
	for i := 0; i < 10; i++ {
		_, err := r.ApplyAward(20, ReasonQuizCompletion, timeutil.Date(2024, 2, 1))
		require.NoError(t, err)
	}
	require.True(t, r.HasBadge(BadgeQuiz10))
	countAfterUnlock := len(r.Badges)

	// Further awards never remove or duplicate it.
	_, err := r.ApplyAward(20, ReasonQuizCompletion, timeutil.Date(2024, 2, 2))
	require.NoError(t, err)
	assert.True(t, r.HasBadge(BadgeQuiz10))
	assert.Equal(t, countAfterUnlock, len(r.Badges))
}

func TestBadges_LevelGatedBadgeSeesNewLevel(t *testing.T) {
	r := newTestRecord(t)
	r.XP = 1499 // one point below Honor Student

	out, err := r.ApplyAward(1, ReasonBonus, timeutil.Date(2024, 2, 1))
	require.NoError(t, err)

	assert.True(t, out.LeveledUp)
	assert.Equal(t, 5, out.LevelAfter.Level)
	assert.Contains(t, out.NewBadges, BadgeLevel5)
	assert.Contains(t, out.NewBadges, BadgeXP1000)
}
