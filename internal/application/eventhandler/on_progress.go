// Package eventhandler contains subscribers that turn domain events into
// student-facing notifications.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS HANDLER
// Consumes gamification events and dispatches notifications. A single award
// can carry several messages; they go out in a fixed order so the student
// reads a coherent story: XP gained, then the level-up, then each badge.
//
// Delivery is strictly best-effort. A notification failure is logged and
// swallowed; it never reaches the publisher and never affects stored state.
// ═══════════════════════════════════════════════════════════════════════════

// Notifier is the outbound notification port.
type Notifier interface {
	NotifyXPGained(ctx context.Context, studentID string, amount, newTotal int, reason string) error
	NotifyLevelUp(ctx context.Context, studentID string, level int, title string) error
	NotifyBadgeUnlocked(ctx context.Context, studentID, badgeID, badgeName, icon string) error
	NotifyStreakBroken(ctx context.Context, studentID string, previousStreak, daysMissed int) error
}

// OnProgressHandler dispatches notifications for progress events.
type OnProgressHandler struct {
	notifier Notifier
	logger   *slog.Logger
	config   ProgressConfig
}

// ProgressConfig contains configuration for the dispatcher.
type ProgressConfig struct {
	// NotifyXPGains sends a notice for every award. Off by default: a
	// per-award ping is noise next to level-ups and badges.
	NotifyXPGains bool

	// NotifyStreakBroken sends a notice when a streak resets.
	NotifyStreakBroken bool
}

// DefaultProgressConfig returns sensible defaults.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		NotifyXPGains:      false,
		NotifyStreakBroken: true,
	}
}

// NewOnProgressHandler creates a new dispatcher.
func NewOnProgressHandler(notifier Notifier, logger *slog.Logger, config ProgressConfig) *OnProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnProgressHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_progress"),
		config:   config,
	}
}

// Subscribe registers the handler with the bus.
func (h *OnProgressHandler) Subscribe(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventXPAwarded, h.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventStreakBroken, h.Handle)
}

// Handle implements shared.EventHandler.
func (h *OnProgressHandler) Handle(event shared.Event) error {
	if h.notifier == nil {
		return nil
	}

	ctx := context.Background()

	switch e := event.(type) {
	case shared.XPAwardedEvent:
		h.handleAward(ctx, e)
	case shared.StreakBrokenEvent:
		h.handleStreakBroken(ctx, e)
	default:
		h.logger.Warn("received unexpected event", "event_type", string(event.EventType()))
	}

	return nil
}

// handleAward sends the award's notification sequence in order.
func (h *OnProgressHandler) handleAward(ctx context.Context, e shared.XPAwardedEvent) {
	if h.config.NotifyXPGains {
		if err := h.notifier.NotifyXPGained(ctx, e.StudentID, e.Amount, e.NewTotal, e.Reason); err != nil {
			h.logger.Warn("xp notification failed",
				"student_id", e.StudentID,
				"error", err,
			)
		}
	}

	if e.LeveledUp {
		if err := h.notifier.NotifyLevelUp(ctx, e.StudentID, e.NewLevel, e.NewTitle); err != nil {
			h.logger.Warn("level-up notification failed",
				"student_id", e.StudentID,
				"level", e.NewLevel,
				"error", err,
			)
		}
	}

	for _, id := range e.NewBadges {
		badge, ok := gamification.BadgeByID(gamification.BadgeID(id))
		if !ok {
			h.logger.Warn("award referenced unknown badge", "badge_id", id)
			continue
		}

		if err := h.notifier.NotifyBadgeUnlocked(ctx, e.StudentID, string(badge.ID), badge.Name, badge.Icon); err != nil {
			h.logger.Warn("badge notification failed",
				"student_id", e.StudentID,
				"badge_id", id,
				"error", err,
			)
		}
	}
}

func (h *OnProgressHandler) handleStreakBroken(ctx context.Context, e shared.StreakBrokenEvent) {
	if !h.config.NotifyStreakBroken {
		return
	}

	if err := h.notifier.NotifyStreakBroken(ctx, e.StudentID, e.PreviousStreak, e.DaysMissed); err != nil {
		h.logger.Warn("streak-broken notification failed",
			"student_id", e.StudentID,
			"error", err,
		)
	}
}
