package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorlink/tutorlink-gamification/pkg/timeutil"
)

func newTestRecord(t *testing.T) *Record {
	t.Helper()
	r, err := NewRecord("student-1", timeutil.Date(2024, 1, 1))
	require.NoError(t, err)
	return r
}

func TestApplyLogin_FirstLogin(t *testing.T) {
	r := newTestRecord(t)

	res, err := r.ApplyLogin(timeutil.Date(2024, 1, 10))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, 1, res.BestStreak)
	assert.Equal(t, DailyLoginXP, res.XPAwarded)
	assert.True(t, res.FirstLogin)
	assert.False(t, res.StreakBroken)
	assert.Equal(t, 1, r.TotalLogins)
	assert.Equal(t, timeutil.Date(2024, 1, 10), r.LastActiveDate)
}

func TestApplyLogin_SameDayIsIdempotent(t *testing.T) {
	r := newTestRecord(t)

	_, err := r.ApplyLogin(timeutil.Date(2024, 1, 10).Add(9 * time.Hour))
	require.NoError(t, err)
	before := r.Clone()

	res, err := r.ApplyLogin(timeutil.Date(2024, 1, 10).Add(21 * time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, XP(0), res.XPAwarded)
	assert.Equal(t, before.XP, r.XP)
	assert.Equal(t, before.TotalLogins, r.TotalLogins)
	assert.Equal(t, before.LastActiveDate, r.LastActiveDate)
}

func TestApplyLogin_BackDatedLoginIsIgnored(t *testing.T) {
	r := newTestRecord(t)

	_, err := r.ApplyLogin(timeutil.Date(2024, 1, 10))
	require.NoError(t, err)
	before := r.Clone()

	// A timestamp behind the last counted day must not reset the streak,
	// move LastActiveDate backwards, or pay the bonus again.
	res, err := r.ApplyLogin(timeutil.Date(2024, 1, 9))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, XP(0), res.XPAwarded)
	assert.False(t, res.StreakBroken)
	assert.Equal(t, before.XP, r.XP)
	assert.Equal(t, before.LastActiveDate, r.LastActiveDate)

	// The original day stays counted: logging in again on Jan 10 is still
	// the idempotent no-op.
	res, err = r.ApplyLogin(timeutil.Date(2024, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, XP(0), res.XPAwarded)
	assert.Equal(t, before.XP, r.XP)
}

func TestApplyLogin_NextDayExtendsStreak(t *testing.T) {
	r := newTestRecord(t)

	_, err := r.ApplyLogin(timeutil.Date(2024, 1, 10))
	require.NoError(t, err)

	res, err := r.ApplyLogin(timeutil.Date(2024, 1, 11))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Streak)
	assert.Equal(t, 2, res.BestStreak)
	assert.Equal(t, DailyLoginXP, res.XPAwarded)
	assert.False(t, res.StreakBroken)
}

func TestApplyLogin_GapResetsStreak(t *testing.T) {
	r := newTestRecord(t)

	// Build a 2-day streak, then miss three days.
	_, err := r.ApplyLogin(timeutil.Date(2024, 1, 10))
	require.NoError(t, err)
	_, err = r.ApplyLogin(timeutil.Date(2024, 1, 11))
	require.NoError(t, err)

	res, err := r.ApplyLogin(timeutil.Date(2024, 1, 15))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Streak)
	assert.True(t, res.StreakBroken)
	assert.Equal(t, 2, res.PreviousStreak)
	assert.Equal(t, 4, res.DaysMissed)
	assert.Equal(t, DailyLoginXP, res.XPAwarded)
	assert.Equal(t, 2, res.BestStreak, "best streak survives the reset")
}

func TestApplyLogin_BestStreakTracksPeak(t *testing.T) {
	r := newTestRecord(t)

	for day := 10; day <= 14; day++ {
		_, err := r.ApplyLogin(timeutil.Date(2024, 1, day))
		require.NoError(t, err)
	}
	assert.Equal(t, 5, r.Streak)
	assert.Equal(t, 5, r.BestStreak)

	_, err := r.ApplyLogin(timeutil.Date(2024, 1, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Streak)
	assert.Equal(t, 5, r.BestStreak)
}

func TestApplyLogin_UsesUTCCalendarDays(t *testing.T) {
	r := newTestRecord(t)

	// 23:30 UTC on Jan 10, then 00:30 UTC on Jan 11: consecutive days even
	// though only an hour apart.
	_, err := r.ApplyLogin(time.Date(2024, 1, 10, 23, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	res, err := r.ApplyLogin(time.Date(2024, 1, 11, 0, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Streak)
	assert.Equal(t, DailyLoginXP, res.XPAwarded)
}

func TestApplyLogin_StreakBadgesUnlock(t *testing.T) {
	r := newTestRecord(t)

	var unlockedOnDay3 []BadgeID
	for day := 1; day <= 7; day++ {
		res, err := r.ApplyLogin(timeutil.Date(2024, 3, day))
		require.NoError(t, err)
		if day == 3 {
			unlockedOnDay3 = res.Award.NewBadges
		}
	}

	assert.Contains(t, unlockedOnDay3, BadgeStreak3)
	assert.True(t, r.HasBadge(BadgeStreak3))
	assert.True(t, r.HasBadge(BadgeStreak7))
	assert.True(t, r.HasBadge(BadgeFirstLogin))
}

func TestStreakAtRisk(t *testing.T) {
	r := newTestRecord(t)
	_, err := r.ApplyLogin(timeutil.Date(2024, 1, 10))
	require.NoError(t, err)

	assert.False(t, r.StreakAtRisk(timeutil.Date(2024, 1, 10).Add(20*time.Hour)), "active today")
	assert.True(t, r.StreakAtRisk(timeutil.Date(2024, 1, 11).Add(18*time.Hour)), "last active yesterday")
	assert.False(t, r.StreakAtRisk(timeutil.Date(2024, 1, 13)), "already broken")
}
