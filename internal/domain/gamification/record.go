package gamification

import (
	"strings"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// StudentID is the opaque identifier of a student, owned by the accounts
// system. The engine never parses it.
type StudentID string

// MaxStudentIDLength bounds the identifier so it fits the storage schema.
const MaxStudentIDLength = 64

// IsValid checks that the ID is non-empty, within bounds, and has no
// surrounding whitespace.
func (id StudentID) IsValid() bool {
	s := string(id)
	if s == "" || len(s) > MaxStudentIDLength {
		return false
	}
	return strings.TrimSpace(s) == s
}

// String returns the ID as a plain string.
func (id StudentID) String() string {
	return string(id)
}

// XP represents experience points. Total XP is non-negative and only ever
// grows.
type XP int

// IsValid checks that the XP value is non-negative.
func (xp XP) IsValid() bool {
	return xp >= 0
}

// Add returns the XP increased by the given amount.
func (xp XP) Add(amount XP) XP {
	return xp + amount
}

// Reason identifies why XP was awarded. Reasons are closed: the engine only
// accepts values it knows how to count.
type Reason string

const (
	// ReasonQuizCompletion - the student completed a practice quiz.
	ReasonQuizCompletion Reason = "quiz_completion"
	// ReasonSessionAttended - the student attended a tutoring session.
	ReasonSessionAttended Reason = "session_attended"
	// ReasonReviewSubmitted - the student wrote a tutor review.
	ReasonReviewSubmitted Reason = "review_submitted"
	// ReasonDailyLogin - daily login bonus, awarded by the streak updater.
	ReasonDailyLogin Reason = "daily_login"
	// ReasonBonus - manual or promotional bonus.
	ReasonBonus Reason = "bonus"
)

// IsValid checks that the reason is one of the known values.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonQuizCompletion, ReasonSessionAttended, ReasonReviewSubmitted,
		ReasonDailyLogin, ReasonBonus:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Record is the per-student gamification aggregate. It is created lazily on
// the student's first qualifying login and mutated only through its methods.
type Record struct {
	// StudentID - owner of the record.
	StudentID StudentID

	// XP - total accumulated experience points.
	XP XP

	// Streak - current consecutive-day login streak.
	Streak int

	// BestStreak - longest streak ever reached.
	BestStreak int

	// LastActiveDate - UTC calendar day of the last counted login.
	// Zero when the student has never logged in.
	LastActiveDate time.Time

	// Badges - unlocked badge IDs in unlock order. Append-only.
	Badges []BadgeID

	// Counters feeding badge predicates.
	TotalLogins      int
	QuizzesCompleted int
	SessionsAttended int
	ReviewsWritten   int

	// CreatedAt - when the record was lazily created.
	CreatedAt time.Time

	// UpdatedAt - last mutation time.
	UpdatedAt time.Time
}

// NewRecord creates an empty record for a student. The caller persists it;
// the first login is applied separately so creation stays idempotent.
func NewRecord(studentID StudentID, now time.Time) (*Record, error) {
	if !studentID.IsValid() {
		return nil, shared.ErrInvalidStudentID
	}

	return &Record{
		StudentID: studentID,
		Badges:    []BadgeID{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Level resolves the record's current level from XP.
func (r *Record) Level() LevelInfo {
	return CalculateLevel(r.XP)
}

// Progress resolves the record's level progress from XP.
func (r *Record) Progress() LevelProgress {
	return CalculateProgress(r.XP)
}

// HasBadge reports whether the badge is already unlocked.
func (r *Record) HasBadge(id BadgeID) bool {
	for _, b := range r.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Badges = make([]BadgeID, len(r.Badges))
	copy(cp.Badges, r.Badges)
	return &cp
}

// ══════════════════════════════════════════════════════════════════════════════
// XP AWARDS
// ══════════════════════════════════════════════════════════════════════════════

// AwardOutcome is the result of a single XP award.
type AwardOutcome struct {
	// Amount actually awarded.
	Amount XP

	// NewTotal - XP after the award.
	NewTotal XP

	// LevelBefore / LevelAfter - resolved levels around the award.
	LevelBefore LevelInfo
	LevelAfter  LevelInfo

	// LeveledUp is true when the award crossed at least one threshold.
	LeveledUp bool

	// NewBadges - badges unlocked by this award, in unlock order.
	NewBadges []BadgeID
}

// ApplyAward adds XP for the given reason, bumps the reason's counter, and
// evaluates badges against the updated record. The amount must be positive;
// otherwise the record is left untouched.
func (r *Record) ApplyAward(amount XP, reason Reason, now time.Time) (AwardOutcome, error) {
	if amount <= 0 {
		return AwardOutcome{}, shared.ErrInvalidXPAmount
	}
	if !reason.IsValid() {
		return AwardOutcome{}, shared.ErrInvalidAwardReason
	}

	outcome := AwardOutcome{
		Amount:      amount,
		LevelBefore: r.Level(),
	}

	r.XP = r.XP.Add(amount)
	r.bumpCounter(reason)
	r.UpdatedAt = now.UTC()

	outcome.NewTotal = r.XP
	outcome.LevelAfter = r.Level()
	outcome.LeveledUp = outcome.LevelAfter.Level > outcome.LevelBefore.Level

	// Badges are evaluated after XP and counters settle, so level-gated
	// badges see the new level.
	outcome.NewBadges = r.unlockEarnedBadges()

	return outcome, nil
}

// bumpCounter increments the counter linked to the award reason.
// Login counting lives in ApplyLogin; ReasonDailyLogin and ReasonBonus have
// no counter of their own.
func (r *Record) bumpCounter(reason Reason) {
	switch reason {
	case ReasonQuizCompletion:
		r.QuizzesCompleted++
	case ReasonSessionAttended:
		r.SessionsAttended++
	case ReasonReviewSubmitted:
		r.ReviewsWritten++
	}
}

// unlockEarnedBadges appends every badge whose predicate now holds and
// returns the newly unlocked IDs in catalog order.
func (r *Record) unlockEarnedBadges() []BadgeID {
	earned := EvaluateBadges(r)
	for _, id := range earned {
		r.Badges = append(r.Badges, id)
	}
	return earned
}
