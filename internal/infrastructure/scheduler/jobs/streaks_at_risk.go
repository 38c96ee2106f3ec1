package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS AT RISK JOB
// ══════════════════════════════════════════════════════════════════════════════

// StreakReminder sends a streak-at-risk nudge to one student. Implementations
// decide the channel and may drop the nudge (feature flag off, no address on
// file); the sweep treats every send as best-effort.
type StreakReminder interface {
	RemindStreakAtRisk(ctx context.Context, studentID gamification.StudentID, streak int) error
}

// StreaksAtRiskJob finds students whose streak breaks at the next UTC
// midnight and nudges them. A streak is at risk when the student was last
// active exactly one calendar day ago.
type StreaksAtRiskJob struct {
	repo     gamification.Repository
	reminder StreakReminder
	logger   *slog.Logger
	config   StreaksAtRiskConfig
}

// StreaksAtRiskConfig contains configuration for the reminder sweep.
type StreaksAtRiskConfig struct {
	// MinStreak is the smallest streak worth nudging about.
	MinStreak int

	// Timeout is the maximum duration for one sweep.
	Timeout time.Duration
}

// DefaultStreaksAtRiskConfig returns sensible defaults.
func DefaultStreaksAtRiskConfig() StreaksAtRiskConfig {
	return StreaksAtRiskConfig{
		MinStreak: 3,
		Timeout:   5 * time.Minute,
	}
}

// NewStreaksAtRiskJob creates a new reminder sweep job.
func NewStreaksAtRiskJob(
	repo gamification.Repository,
	reminder StreakReminder,
	logger *slog.Logger,
	config StreaksAtRiskConfig,
) *StreaksAtRiskJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MinStreak <= 0 {
		config.MinStreak = 3
	}

	return &StreaksAtRiskJob{
		repo:     repo,
		reminder: reminder,
		logger:   logger,
		config:   config,
	}
}

// Name returns the job name.
func (j *StreaksAtRiskJob) Name() string {
	return "streaks_at_risk"
}

// Description returns a human-readable description.
func (j *StreaksAtRiskJob) Description() string {
	return "Nudges students whose login streak breaks at the next UTC midnight"
}

// Run executes one sweep.
func (j *StreaksAtRiskJob) Run(ctx context.Context) error {
	if j.reminder == nil {
		return nil
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	yesterday := timeutil.Today().AddDate(0, 0, -1)

	records, err := j.repo.LastActiveOn(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("failed to load at-risk records: %w", err)
	}

	var nudged, skipped, failed int
	for _, rec := range records {
		if rec.Streak < j.config.MinStreak {
			skipped++
			continue
		}

		if err := j.reminder.RemindStreakAtRisk(ctx, rec.StudentID, rec.Streak); err != nil {
			failed++
			j.logger.Warn("streak reminder failed",
				"student_id", rec.StudentID.String(),
				"streak", rec.Streak,
				"error", err,
			)
			continue
		}
		nudged++
	}

	j.logger.Info("streak reminder sweep completed",
		"at_risk", len(records),
		"nudged", nudged,
		"skipped", skipped,
		"failed", failed,
	)

	return nil
}
