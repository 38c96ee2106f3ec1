package gamification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY CONTRACTS
// ══════════════════════════════════════════════════════════════════════════════

// Repository persists gamification records.
//
// Update must be atomic per record: the implementation loads the record with
// an exclusive lock, applies fn, and persists the result in one transaction.
// An error from fn aborts the transaction and leaves storage untouched.
type Repository interface {
	// Get loads a record by student ID. Returns shared.ErrRecordNotFound
	// when the student has never logged in.
	Get(ctx context.Context, studentID StudentID) (*Record, error)

	// Create inserts a fresh record. Returns shared.ErrRecordAlreadyExists
	// when a concurrent call won the race.
	Create(ctx context.Context, record *Record) error

	// Update applies fn to the stored record inside a transaction and
	// returns the updated record.
	Update(ctx context.Context, studentID StudentID, fn func(*Record) error) (*Record, error)

	// Leaderboard returns up to limit records ordered by XP descending,
	// ties broken by earlier LastActiveDate.
	Leaderboard(ctx context.Context, limit int) ([]*Record, error)

	// LastActiveOn returns records whose last active calendar day equals
	// day. The reminder sweep uses it to find streaks at risk.
	LastActiveOn(ctx context.Context, day time.Time) ([]*Record, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)
}

// HistoryEntry is one row of the append-only XP audit trail.
type HistoryEntry struct {
	StudentID StudentID
	Amount    XP
	Reason    Reason
	NewTotal  XP
	AwardedAt time.Time
}

// HistoryRepository records XP awards for auditing. The trail is best-effort:
// a failed append never fails the award itself.
type HistoryRepository interface {
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	History(ctx context.Context, studentID StudentID, limit int) ([]HistoryEntry, error)
}

// CompareForLeaderboard orders two records for the leaderboard: higher XP
// first, ties broken by earlier LastActiveDate (the student who reached the
// score first ranks higher). Returns a negative value when a ranks before b.
func CompareForLeaderboard(a, b *Record) int {
	if a.XP != b.XP {
		if a.XP > b.XP {
			return -1
		}
		return 1
	}
	if a.LastActiveDate.Before(b.LastActiveDate) {
		return -1
	}
	if b.LastActiveDate.Before(a.LastActiveDate) {
		return 1
	}
	return 0
}
