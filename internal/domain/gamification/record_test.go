package gamification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
	"github.com/tutorlink/tutorlink-gamification/pkg/timeutil"
)

func TestStudentID_IsValid(t *testing.T) {
	tests := []struct {
		name string
		id   StudentID
		want bool
	}{
		{"plain ID", "student-42", true},
		{"uuid style", "a3c5e9f0-1b2d-4c3e-8f00-aabbccddeeff", true},
		{"empty", "", false},
		{"leading space", " student", false},
		{"trailing space", "student ", false},
		{"too long", StudentID(strings.Repeat("x", 65)), false},
		{"at max length", StudentID(strings.Repeat("x", 64)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.IsValid())
		})
	}
}

func TestNewRecord(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r, err := NewRecord("student-1", timeutil.Date(2024, 1, 1))
		require.NoError(t, err)
		assert.Equal(t, XP(0), r.XP)
		assert.Equal(t, 0, r.Streak)
		assert.Empty(t, r.Badges)
		assert.True(t, r.LastActiveDate.IsZero())
	})

	t.Run("invalid student ID", func(t *testing.T) {
		_, err := NewRecord("", timeutil.Date(2024, 1, 1))
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})
}

func TestApplyAward_RejectsNonPositiveAmounts(t *testing.T) {
	r := newTestRecord(t)
	r.XP = 100
	before := r.Clone()

	for _, amount := range []XP{0, -5} {
		_, err := r.ApplyAward(amount, ReasonQuizCompletion, timeutil.Date(2024, 2, 1))
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	}

	// No mutation on rejected awards.
	assert.Equal(t, before.XP, r.XP)
	assert.Equal(t, before.QuizzesCompleted, r.QuizzesCompleted)
}

func TestApplyAward_RejectsUnknownReason(t *testing.T) {
	r := newTestRecord(t)

	_, err := r.ApplyAward(10, "mystery", timeutil.Date(2024, 2, 1))
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestApplyAward_LevelUpAtExactThreshold(t *testing.T) {
	r := newTestRecord(t)
	r.XP = 300 // Dedicated Student

	out, err := r.ApplyAward(500, ReasonSessionAttended, timeutil.Date(2024, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, XP(800), out.NewTotal)
	assert.Equal(t, 3, out.LevelBefore.Level)
	assert.Equal(t, 4, out.LevelAfter.Level)
	assert.True(t, out.LeveledUp, "landing exactly on a threshold counts as crossing it")
}

func TestApplyAward_NoLevelUpWithinLevel(t *testing.T) {
	r := newTestRecord(t)
	r.XP = 100

	out, err := r.ApplyAward(50, ReasonQuizCompletion, timeutil.Date(2024, 2, 1))
	require.NoError(t, err)

	assert.False(t, out.LeveledUp)
	assert.Equal(t, out.LevelBefore.Level, out.LevelAfter.Level)
}

func TestApplyAward_BumpsReasonCounters(t *testing.T) {
	r := newTestRecord(t)

	_, err := r.ApplyAward(10, ReasonQuizCompletion, timeutil.Date(2024, 2, 1))
	require.NoError(t, err)
	_, err = r.ApplyAward(10, ReasonSessionAttended, timeutil.Date(2024, 2, 1))
	require.NoError(t, err)
	_, err = r.ApplyAward(10, ReasonReviewSubmitted, timeutil.Date(2024, 2, 1))
	require.NoError(t, err)
	_, err = r.ApplyAward(10, ReasonBonus, timeutil.Date(2024, 2, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, r.QuizzesCompleted)
	assert.Equal(t, 1, r.SessionsAttended)
	assert.Equal(t, 1, r.ReviewsWritten)
	assert.Equal(t, 0, r.TotalLogins, "bonus and login reasons do not bump activity counters here")
}

func TestRecord_Clone(t *testing.T) {
	r := newTestRecord(t)
	r.Badges = append(r.Badges, BadgeFirstLogin)

	cp := r.Clone()
	cp.Badges = append(cp.Badges, BadgeStreak3)
	cp.XP = 999

	assert.Len(t, r.Badges, 1)
	assert.Equal(t, XP(0), r.XP)
}

func TestCompareForLeaderboard(t *testing.T) {
	a := &Record{StudentID: "a", XP: 500, LastActiveDate: timeutil.Date(2024, 1, 5)}
	b := &Record{StudentID: "b", XP: 500, LastActiveDate: timeutil.Date(2024, 1, 9)}
	c := &Record{StudentID: "c", XP: 700, LastActiveDate: timeutil.Date(2024, 1, 9)}

	assert.Negative(t, CompareForLeaderboard(c, a), "higher XP ranks first")
	assert.Negative(t, CompareForLeaderboard(a, b), "tie broken by earlier last active date")
	assert.Positive(t, CompareForLeaderboard(b, a))
	assert.Zero(t, CompareForLeaderboard(a, a))
}
