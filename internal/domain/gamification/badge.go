package gamification

// ══════════════════════════════════════════════════════════════════════════════
// BADGE CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// BadgeID identifies a badge in the static catalog.
type BadgeID string

const (
	BadgeFirstLogin BadgeID = "first_login"
	BadgeStreak3    BadgeID = "streak_3"
	BadgeStreak7    BadgeID = "streak_7"
	BadgeStreak30   BadgeID = "streak_30"
	BadgeQuiz10     BadgeID = "quiz_10"
	BadgeQuiz50     BadgeID = "quiz_50"
	BadgeSession1   BadgeID = "session_1"
	BadgeSession25  BadgeID = "session_25"
	BadgeReview5    BadgeID = "review_5"
	BadgeLevel5     BadgeID = "level_5"
	BadgeLevel10    BadgeID = "level_10"
	BadgeXP1000     BadgeID = "xp_1000"
)

// Badge describes one entry of the catalog. Predicates are pure functions of
// the record; they never mutate it.
type Badge struct {
	ID        BadgeID
	Name      string
	Icon      string
	Predicate func(*Record) bool
}

// Catalog returns the full badge catalog in evaluation order.
// Streak badges test BestStreak so a later reset never re-triggers them and
// never takes them away.
func Catalog() []Badge {
	return []Badge{
		{BadgeFirstLogin, "First Steps", "👋", func(r *Record) bool { return r.TotalLogins >= 1 }},
		{BadgeStreak3, "Warming Up", "🔥", func(r *Record) bool { return r.BestStreak >= 3 }},
		{BadgeStreak7, "Week of Fire", "🔥", func(r *Record) bool { return r.BestStreak >= 7 }},
		{BadgeStreak30, "Iron Will", "💪", func(r *Record) bool { return r.BestStreak >= 30 }},
		{BadgeQuiz10, "Quiz Whiz", "🧠", func(r *Record) bool { return r.QuizzesCompleted >= 10 }},
		{BadgeQuiz50, "Quiz Master", "🎓", func(r *Record) bool { return r.QuizzesCompleted >= 50 }},
		{BadgeSession1, "First Session", "📚", func(r *Record) bool { return r.SessionsAttended >= 1 }},
		{BadgeSession25, "Regular", "📅", func(r *Record) bool { return r.SessionsAttended >= 25 }},
		{BadgeReview5, "Voice Heard", "✍️", func(r *Record) bool { return r.ReviewsWritten >= 5 }},
		{BadgeLevel5, "Honor Roll", "⭐", func(r *Record) bool { return r.Level().Level >= 5 }},
		{BadgeLevel10, "Living Legend", "🏆", func(r *Record) bool { return r.Level().Level >= 10 }},
		{BadgeXP1000, "Point Collector", "💎", func(r *Record) bool { return r.XP >= 1000 }},
	}
}

// BadgeByID returns the catalog entry for the given ID.
func BadgeByID(id BadgeID) (Badge, bool) {
	for _, b := range Catalog() {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}

// EvaluateBadges returns the badges whose predicates hold but are not yet
// unlocked, in catalog order. It does not mutate the record; callers append
// the results to keep the unlocked set append-only.
func EvaluateBadges(r *Record) []BadgeID {
	unlocked := make(map[BadgeID]bool, len(r.Badges))
	for _, id := range r.Badges {
		unlocked[id] = true
	}

	var earned []BadgeID
	for _, b := range Catalog() {
		if unlocked[b.ID] {
			continue
		}
		if b.Predicate(r) {
			earned = append(earned, b.ID)
		}
	}
	return earned
}
