// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD XP COMMAND
// Applies an activity-based XP award to an existing record. Levels and titles
// are never stored; they are derived from the new total on the way out.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardInvalidator drops cached leaderboard state after a write.
// Invalidation is best-effort: a stale page expires on its own TTL.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AwardXPCommand contains the data for one XP award.
type AwardXPCommand struct {
	// StudentID is the ID of the student receiving the award.
	StudentID string

	// Amount is the XP to add. Must be positive.
	Amount int

	// Reason identifies the activity behind the award.
	Reason string
}

// Validate validates the command.
func (c AwardXPCommand) Validate() error {
	if !gamification.StudentID(c.StudentID).IsValid() {
		return shared.ErrInvalidStudentID
	}
	if c.Amount <= 0 {
		return shared.ErrInvalidXPAmount
	}
	if !gamification.Reason(c.Reason).IsValid() {
		return shared.ErrInvalidAwardReason
	}
	return nil
}

// AwardXPResult contains the result of an award.
type AwardXPResult struct {
	// StudentID is the ID of the student.
	StudentID string

	// Outcome carries the award details (new total, level change, badges).
	Outcome gamification.AwardOutcome

	// Record is the updated record.
	Record *gamification.Record
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardXPHandler handles the AwardXPCommand.
type AwardXPHandler struct {
	repo        gamification.Repository
	history     gamification.HistoryRepository
	publisher   shared.EventPublisher
	invalidator LeaderboardInvalidator
	logger      *slog.Logger
}

// NewAwardXPHandler creates a new AwardXPHandler. History and invalidator may
// be nil.
func NewAwardXPHandler(
	repo gamification.Repository,
	history gamification.HistoryRepository,
	publisher shared.EventPublisher,
	invalidator LeaderboardInvalidator,
	logger *slog.Logger,
) *AwardXPHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AwardXPHandler{
		repo:        repo,
		history:     history,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Handle executes the award. Returns shared.ErrRecordNotFound when the
// student has no record yet: awards never create records, only logins do.
func (h *AwardXPHandler) Handle(ctx context.Context, cmd AwardXPCommand) (*AwardXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	studentID := gamification.StudentID(cmd.StudentID)
	now := time.Now().UTC()

	var outcome gamification.AwardOutcome
	record, err := h.repo.Update(ctx, studentID, func(rec *gamification.Record) error {
		var applyErr error
		outcome, applyErr = rec.ApplyAward(
			gamification.XP(cmd.Amount),
			gamification.Reason(cmd.Reason),
			now,
		)
		return applyErr
	})
	if err != nil {
		return nil, fmt.Errorf("award_xp: %w", err)
	}

	h.appendHistory(ctx, studentID, outcome, gamification.Reason(cmd.Reason), now)
	publishAwardEvents(h.publisher, h.logger, studentID, outcome, cmd.Reason)
	invalidateLeaderboard(ctx, h.invalidator, h.logger)

	return &AwardXPResult{
		StudentID: cmd.StudentID,
		Outcome:   outcome,
		Record:    record,
	}, nil
}

// appendHistory records the award in the audit trail. Best-effort.
func (h *AwardXPHandler) appendHistory(
	ctx context.Context,
	studentID gamification.StudentID,
	outcome gamification.AwardOutcome,
	reason gamification.Reason,
	at time.Time,
) {
	if h.history == nil {
		return
	}

	err := h.history.AppendHistory(ctx, gamification.HistoryEntry{
		StudentID: studentID,
		Amount:    outcome.Amount,
		Reason:    reason,
		NewTotal:  outcome.NewTotal,
		AwardedAt: at,
	})
	if err != nil {
		h.logger.Warn("failed to append xp history",
			"student_id", studentID.String(),
			"error", err,
		)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// publishAwardEvents emits the event sequence for one award: XP gained first,
// then level-up, then one event per badge, preserving notification order.
func publishAwardEvents(
	publisher shared.EventPublisher,
	logger *slog.Logger,
	studentID gamification.StudentID,
	outcome gamification.AwardOutcome,
	reason string,
) {
	if publisher == nil || outcome.Amount == 0 {
		return
	}

	xpEvent := shared.NewXPAwardedEvent(
		studentID.String(),
		int(outcome.Amount),
		int(outcome.NewTotal),
		reason,
	)
	if outcome.LeveledUp {
		xpEvent = xpEvent.WithLevelUp(outcome.LevelAfter.Level, outcome.LevelAfter.Title)
	}
	if len(outcome.NewBadges) > 0 {
		ids := make([]string, len(outcome.NewBadges))
		for i, id := range outcome.NewBadges {
			ids[i] = string(id)
		}
		xpEvent = xpEvent.WithBadges(ids)
	}
	publishEvent(publisher, logger, xpEvent)

	if outcome.LeveledUp {
		publishEvent(publisher, logger, shared.NewLevelUpEvent(
			studentID.String(),
			outcome.LevelBefore.Level,
			outcome.LevelAfter.Level,
			outcome.LevelAfter.Title,
			int(outcome.NewTotal),
		))
	}

	for _, id := range outcome.NewBadges {
		badge, ok := gamification.BadgeByID(id)
		if !ok {
			continue
		}
		publishEvent(publisher, logger, shared.NewBadgeUnlockedEvent(
			studentID.String(),
			string(badge.ID),
			badge.Name,
			badge.Icon,
		))
	}
}

func publishEvent(publisher shared.EventPublisher, logger *slog.Logger, event shared.Event) {
	if err := publisher.Publish(event); err != nil {
		logger.Warn("failed to publish event",
			"event_type", string(event.EventType()),
			"error", err,
		)
	}
}

func invalidateLeaderboard(ctx context.Context, invalidator LeaderboardInvalidator, logger *slog.Logger) {
	if invalidator == nil {
		return
	}
	if err := invalidator.Invalidate(ctx); err != nil {
		logger.Warn("failed to invalidate leaderboard cache", "error", err)
	}
}
