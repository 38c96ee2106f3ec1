package postgres

// Embedded migration SQL. One aggregate row per student; xp_history is an
// append-only audit trail of awards.

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_student_gamification",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_xp_history",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENT GAMIFICATION
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create student_gamification table
-- Version: 001

CREATE TABLE IF NOT EXISTS student_gamification (
    student_id        VARCHAR(64) PRIMARY KEY,
    xp                INTEGER NOT NULL DEFAULT 0 CHECK (xp >= 0),
    streak            INTEGER NOT NULL DEFAULT 0 CHECK (streak >= 0),
    best_streak       INTEGER NOT NULL DEFAULT 0 CHECK (best_streak >= streak),
    last_active_date  DATE,
    badges            TEXT[] NOT NULL DEFAULT '{}',
    total_logins      INTEGER NOT NULL DEFAULT 0,
    quizzes_completed INTEGER NOT NULL DEFAULT 0,
    sessions_attended INTEGER NOT NULL DEFAULT 0,
    reviews_written   INTEGER NOT NULL DEFAULT 0,
    created_at        TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

-- Leaderboard ordering: XP descending, earlier last_active_date wins ties.
CREATE INDEX IF NOT EXISTS idx_gamification_leaderboard
    ON student_gamification (xp DESC, last_active_date ASC NULLS LAST);
`

const migration001Down = `
DROP INDEX IF EXISTS idx_gamification_leaderboard;
DROP TABLE IF EXISTS student_gamification;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE XP HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create xp_history audit trail
-- Version: 002

CREATE TABLE IF NOT EXISTS xp_history (
    id          UUID PRIMARY KEY,
    student_id  VARCHAR(64) NOT NULL REFERENCES student_gamification(student_id),
    amount      INTEGER NOT NULL CHECK (amount > 0),
    reason      VARCHAR(32) NOT NULL,
    new_total   INTEGER NOT NULL,
    awarded_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_xp_history_student
    ON xp_history (student_id, awarded_at DESC);
`

const migration002Down = `
DROP INDEX IF EXISTS idx_xp_history_student;
DROP TABLE IF EXISTS xp_history;
`
