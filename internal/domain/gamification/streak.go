package gamification

import (
	"time"

	"github.com/tutorlink/tutorlink-gamification/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK UPDATER
// ══════════════════════════════════════════════════════════════════════════════

// DailyLoginXP is the fixed XP bonus for the first login of a UTC day.
const DailyLoginXP XP = 10

// LoginResult is the outcome of applying one login to a record.
type LoginResult struct {
	// Streak after the login.
	Streak int

	// BestStreak after the login.
	BestStreak int

	// XPAwarded is the daily bonus, zero on a same-day repeat login.
	XPAwarded XP

	// FirstLogin is true when this login created the streak history.
	FirstLogin bool

	// StreakBroken is true when a gap of more than one day reset the streak.
	StreakBroken bool

	// PreviousStreak is the streak before a break. Zero otherwise.
	PreviousStreak int

	// DaysMissed is the size of the gap that broke the streak. Zero otherwise.
	DaysMissed int

	// Award carries the daily bonus outcome (level-up, badges).
	// Meaningless when XPAwarded is zero.
	Award AwardOutcome
}

// ApplyLogin applies a login at the given time to the record. Day comparison
// uses UTC calendar days:
//
//	same day or earlier - no-op, XPAwarded = 0
//	next day  - streak + 1, daily bonus
//	gap       - streak reset to 1, daily bonus
//	first     - streak = 1, daily bonus
//
// The daily bonus goes through ApplyAward so level-ups and badge unlocks
// triggered by a login are reported the same way as any other award.
func (r *Record) ApplyLogin(at time.Time) (LoginResult, error) {
	today := timeutil.DayOf(at)

	if r.LastActiveDate.IsZero() {
		return r.countLogin(today, LoginResult{Streak: 1, FirstLogin: true}, at)
	}

	daysDiff := timeutil.DaysBetween(r.LastActiveDate, today)

	switch {
	case daysDiff <= 0:
		// Already counted today, or the timestamp is behind the last
		// counted day (clock skew, back-dated event). State never moves
		// backwards and the day's bonus is never paid twice.
		return LoginResult{
			Streak:     r.Streak,
			BestStreak: r.BestStreak,
		}, nil

	case daysDiff == 1:
		return r.countLogin(today, LoginResult{Streak: r.Streak + 1}, at)

	default:
		return r.countLogin(today, LoginResult{
			Streak:         1,
			StreakBroken:   true,
			PreviousStreak: r.Streak,
			DaysMissed:     daysDiff,
		}, at)
	}
}

// countLogin commits a counted login: updates streak state, bumps the login
// counter, and awards the daily bonus.
func (r *Record) countLogin(today time.Time, res LoginResult, at time.Time) (LoginResult, error) {
	r.Streak = res.Streak
	if r.Streak > r.BestStreak {
		r.BestStreak = r.Streak
	}
	r.LastActiveDate = today
	r.TotalLogins++

	award, err := r.ApplyAward(DailyLoginXP, ReasonDailyLogin, at)
	if err != nil {
		return LoginResult{}, err
	}

	res.BestStreak = r.BestStreak
	res.XPAwarded = award.Amount
	res.Award = award
	return res, nil
}

// StreakAtRisk reports whether the streak will break unless the student logs
// in before the end of the current UTC day.
func (r *Record) StreakAtRisk(now time.Time) bool {
	if r.LastActiveDate.IsZero() || r.Streak == 0 {
		return false
	}
	return timeutil.DaysBetween(r.LastActiveDate, now) == 1
}
