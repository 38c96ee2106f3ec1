package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tutorlink/tutorlink-gamification/config"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/infrastructure/external/email"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// RecipientResolver maps a student ID to an email address. The engine does
// not own student profiles; the platform supplies this lookup.
type RecipientResolver interface {
	EmailFor(ctx context.Context, studentID string) (string, bool)
}

// StaticRecipients is a map-backed resolver for tests and local runs.
type StaticRecipients map[string]string

// EmailFor implements RecipientResolver.
func (s StaticRecipients) EmailFor(_ context.Context, studentID string) (string, bool) {
	addr, ok := s[studentID]
	return addr, ok
}

// EmailSender is the slice of the email client the notifier uses.
type EmailSender interface {
	Send(ctx context.Context, msg email.Message) error
}

// EmailNotifier sends gamification notifications by email. It implements the
// progress dispatcher's notifier port and the streak reminder port. Every
// send is flag-gated per student and silently skipped for students without
// an address on file.
type EmailNotifier struct {
	sender   EmailSender
	resolver RecipientResolver
	flags    *config.FeatureFlags
	logger   *slog.Logger
}

// NewEmailNotifier creates a new EmailNotifier. Flags may be nil, which
// enables everything.
func NewEmailNotifier(sender EmailSender, resolver RecipientResolver, flags *config.FeatureFlags, logger *slog.Logger) *EmailNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &EmailNotifier{
		sender:   sender,
		resolver: resolver,
		flags:    flags,
		logger:   logger.With("component", "email_notifier"),
	}
}

// NotifyXPGained sends a per-award notice.
func (n *EmailNotifier) NotifyXPGained(ctx context.Context, studentID string, amount, newTotal int, reason string) error {
	return n.send(ctx, config.FeatureNotifyXPGain, studentID, email.Message{
		Subject: fmt.Sprintf("+%d XP on TutorLink", amount),
		Text:    fmt.Sprintf("You earned %d XP (%s). Your total is now %d XP.", amount, reason, newTotal),
	})
}

// NotifyLevelUp congratulates a student on a new level.
func (n *EmailNotifier) NotifyLevelUp(ctx context.Context, studentID string, level int, title string) error {
	return n.send(ctx, config.FeatureNotifyLevelUp, studentID, email.Message{
		Subject: fmt.Sprintf("Level %d reached: %s", level, title),
		HTML: fmt.Sprintf("<p>Congratulations! You reached <b>Level %d</b> and earned the title <b>%s</b>.</p>",
			level, title),
		Text: fmt.Sprintf("Congratulations! You reached Level %d and earned the title %s.", level, title),
	})
}

// NotifyBadgeUnlocked announces a new badge.
func (n *EmailNotifier) NotifyBadgeUnlocked(ctx context.Context, studentID, badgeID, badgeName, icon string) error {
	return n.send(ctx, config.FeatureNotifyBadgeUnlocked, studentID, email.Message{
		Subject: fmt.Sprintf("New badge: %s %s", icon, badgeName),
		HTML:    fmt.Sprintf("<p>You unlocked the <b>%s %s</b> badge. Keep it up!</p>", icon, badgeName),
		Text:    fmt.Sprintf("You unlocked the %s badge (%s). Keep it up!", badgeName, badgeID),
	})
}

// NotifyStreakBroken tells a student their streak ended.
func (n *EmailNotifier) NotifyStreakBroken(ctx context.Context, studentID string, previousStreak, daysMissed int) error {
	return n.send(ctx, config.FeatureNotifyStreakBroken, studentID, email.Message{
		Subject: "Your login streak ended",
		Text: fmt.Sprintf("Your %d-day streak ended after %d missed days. Log in today to start a new one.",
			previousStreak, daysMissed),
	})
}

// RemindStreakAtRisk implements the streak reminder port used by the daily
// sweep.
func (n *EmailNotifier) RemindStreakAtRisk(ctx context.Context, studentID gamification.StudentID, streak int) error {
	return n.send(ctx, config.FeatureNotifyStreakAtRisk, studentID.String(), email.Message{
		Subject: fmt.Sprintf("Your %d-day streak is at risk", streak),
		Text: fmt.Sprintf("Log in before midnight UTC to keep your %d-day streak alive (+%d XP).",
			streak, int(gamification.DailyLoginXP)),
	})
}

// send resolves the recipient, checks the flag, and delivers. A disabled
// flag or missing address is a silent skip, not an error.
func (n *EmailNotifier) send(ctx context.Context, feature, studentID string, msg email.Message) error {
	if n.flags != nil && !n.flags.IsEnabled(feature, studentID) {
		return nil
	}

	addr, ok := n.resolver.EmailFor(ctx, studentID)
	if !ok {
		n.logger.Debug("no email on file", "student_id", studentID)
		return nil
	}

	msg.To = addr
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s notification: %w", feature, err)
	}

	return nil
}
