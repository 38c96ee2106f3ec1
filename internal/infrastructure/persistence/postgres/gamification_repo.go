package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
	"github.com/tutorlink/tutorlink-gamification/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GAMIFICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const recordColumns = `
	student_id, xp, streak, best_streak, last_active_date, badges,
	total_logins, quizzes_completed, sessions_attended, reviews_written,
	created_at, updated_at
`

// GamificationRepository implements gamification.Repository for PostgreSQL.
type GamificationRepository struct {
	conn *Connection
}

// NewGamificationRepository creates a new GamificationRepository.
func NewGamificationRepository(conn *Connection) *GamificationRepository {
	return &GamificationRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Get returns the record for a student.
func (r *GamificationRepository) Get(ctx context.Context, studentID gamification.StudentID) (*gamification.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM student_gamification WHERE student_id = $1`

	row := r.conn.QueryRow(ctx, query, studentID.String())
	return scanRecord(row)
}

// Create inserts a fresh record.
func (r *GamificationRepository) Create(ctx context.Context, rec *gamification.Record) error {
	query := `
		INSERT INTO student_gamification (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.conn.Exec(ctx, query,
		rec.StudentID.String(),
		int(rec.XP),
		rec.Streak,
		rec.BestStreak,
		lastActiveArg(rec.LastActiveDate),
		badgeStrings(rec.Badges),
		rec.TotalLogins,
		rec.QuizzesCompleted,
		rec.SessionsAttended,
		rec.ReviewsWritten,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrRecordAlreadyExists
		}
		return shared.WrapError("gamification", "Create", shared.ErrStorage,
			"failed to create record", err)
	}

	return nil
}

// Update loads the record with a row lock, applies fn, and persists the
// result in one transaction. An error from fn rolls everything back.
func (r *GamificationRepository) Update(
	ctx context.Context,
	studentID gamification.StudentID,
	fn func(*gamification.Record) error,
) (*gamification.Record, error) {
	var updated *gamification.Record

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			SELECT ` + recordColumns + `
			FROM student_gamification
			WHERE student_id = $1
			FOR UPDATE
		`

		rec, err := scanRecord(tx.QueryRow(ctx, query, studentID.String()))
		if err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}

		updateQuery := `
			UPDATE student_gamification SET
				xp = $1,
				streak = $2,
				best_streak = $3,
				last_active_date = $4,
				badges = $5,
				total_logins = $6,
				quizzes_completed = $7,
				sessions_attended = $8,
				reviews_written = $9,
				updated_at = $10
			WHERE student_id = $11
		`

		_, err = tx.Exec(ctx, updateQuery,
			int(rec.XP),
			rec.Streak,
			rec.BestStreak,
			lastActiveArg(rec.LastActiveDate),
			badgeStrings(rec.Badges),
			rec.TotalLogins,
			rec.QuizzesCompleted,
			rec.SessionsAttended,
			rec.ReviewsWritten,
			time.Now().UTC(),
			rec.StudentID.String(),
		)
		if err != nil {
			return shared.WrapError("gamification", "Update", shared.ErrStorage,
				"failed to update record", err)
		}

		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Leaderboard
// ─────────────────────────────────────────────────────────────────────────────

// Leaderboard returns the top records ordered by XP descending, ties broken
// by earlier last active date.
func (r *GamificationRepository) Leaderboard(ctx context.Context, limit int) ([]*gamification.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM student_gamification
		ORDER BY xp DESC, last_active_date ASC NULLS LAST, student_id ASC
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "Get", shared.ErrStorage,
			"failed to query leaderboard", err)
	}
	defer rows.Close()

	var records []*gamification.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// LastActiveOn returns records whose last active date equals the given
// calendar day.
func (r *GamificationRepository) LastActiveOn(ctx context.Context, day time.Time) ([]*gamification.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM student_gamification
		WHERE last_active_date = $1
		ORDER BY student_id ASC
	`

	rows, err := r.conn.Query(ctx, query, timeutil.DayOf(day))
	if err != nil {
		return nil, shared.WrapError("gamification", "LastActiveOn", shared.ErrStorage,
			"failed to query records by last active date", err)
	}
	defer rows.Close()

	var records []*gamification.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Count returns the total number of records.
func (r *GamificationRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM student_gamification`).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("gamification", "Count", shared.ErrStorage,
			"failed to count records", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanRecord scans a row into a domain record.
func scanRecord(row pgx.Row) (*gamification.Record, error) {
	var rec gamification.Record
	var studentID string
	var xp int
	var lastActive *time.Time
	var badges []string

	err := row.Scan(
		&studentID,
		&xp,
		&rec.Streak,
		&rec.BestStreak,
		&lastActive,
		&badges,
		&rec.TotalLogins,
		&rec.QuizzesCompleted,
		&rec.SessionsAttended,
		&rec.ReviewsWritten,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRecordNotFound
		}
		return nil, shared.WrapError("gamification", "Scan", shared.ErrStorage,
			"failed to scan record", err)
	}

	rec.StudentID = gamification.StudentID(studentID)
	rec.XP = gamification.XP(xp)
	if lastActive != nil {
		rec.LastActiveDate = lastActive.UTC()
	}
	rec.Badges = make([]gamification.BadgeID, len(badges))
	for i, b := range badges {
		rec.Badges[i] = gamification.BadgeID(b)
	}

	return &rec, nil
}

// lastActiveArg maps the zero time to SQL NULL.
func lastActiveArg(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func badgeStrings(badges []gamification.BadgeID) []string {
	out := make([]string, len(badges))
	for i, b := range badges {
		out[i] = string(b)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// XP HISTORY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// HistoryRepository implements gamification.HistoryRepository for PostgreSQL.
type HistoryRepository struct {
	conn *Connection
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// AppendHistory records one XP award.
func (r *HistoryRepository) AppendHistory(ctx context.Context, entry gamification.HistoryEntry) error {
	query := `
		INSERT INTO xp_history (id, student_id, amount, reason, new_total, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		uuid.NewString(),
		entry.StudentID.String(),
		int(entry.Amount),
		string(entry.Reason),
		int(entry.NewTotal),
		entry.AwardedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append xp history: %w", err)
	}

	return nil
}

// History returns the most recent awards for a student, newest first.
func (r *HistoryRepository) History(ctx context.Context, studentID gamification.StudentID, limit int) ([]gamification.HistoryEntry, error) {
	query := `
		SELECT student_id, amount, reason, new_total, awarded_at
		FROM xp_history
		WHERE student_id = $1
		ORDER BY awarded_at DESC
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, studentID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query xp history: %w", err)
	}
	defer rows.Close()

	var entries []gamification.HistoryEntry
	for rows.Next() {
		var e gamification.HistoryEntry
		var sid, reason string
		var amount, newTotal int

		if err := rows.Scan(&sid, &amount, &reason, &newTotal, &e.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp history row: %w", err)
		}

		e.StudentID = gamification.StudentID(sid)
		e.Amount = gamification.XP(amount)
		e.Reason = gamification.Reason(reason)
		e.NewTotal = gamification.XP(newTotal)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
