package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tutorlink/tutorlink-gamification/internal/domain/gamification"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD LOGIN COMMAND
// Processes a daily login event: lazily creates the record, updates the
// streak, and awards the daily bonus. Safe to call any number of times per
// day; only the first login of a UTC day counts.
// ══════════════════════════════════════════════════════════════════════════════

// RecordLoginCommand contains the data for one login event.
type RecordLoginCommand struct {
	// StudentID is the ID of the student who logged in.
	StudentID string

	// At is when the login happened. Defaults to now when zero.
	At time.Time
}

// Validate validates the command.
func (c RecordLoginCommand) Validate() error {
	if !gamification.StudentID(c.StudentID).IsValid() {
		return shared.ErrInvalidStudentID
	}
	return nil
}

// RecordLoginResult contains the result of processing a login.
type RecordLoginResult struct {
	// StudentID is the ID of the student.
	StudentID string

	// Created is true when this login created the record.
	Created bool

	// Login carries the streak outcome and the daily bonus award.
	Login gamification.LoginResult

	// Record is the updated record.
	Record *gamification.Record
}

// Counted reports whether this login was the first of its UTC day.
func (r *RecordLoginResult) Counted() bool {
	return r.Login.XPAwarded > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordLoginHandler handles the RecordLoginCommand.
type RecordLoginHandler struct {
	repo        gamification.Repository
	history     gamification.HistoryRepository
	publisher   shared.EventPublisher
	invalidator LeaderboardInvalidator
	logger      *slog.Logger
}

// NewRecordLoginHandler creates a new RecordLoginHandler. History and
// invalidator may be nil.
func NewRecordLoginHandler(
	repo gamification.Repository,
	history gamification.HistoryRepository,
	publisher shared.EventPublisher,
	invalidator LeaderboardInvalidator,
	logger *slog.Logger,
) *RecordLoginHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecordLoginHandler{
		repo:        repo,
		history:     history,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Handle executes the login command.
func (h *RecordLoginHandler) Handle(ctx context.Context, cmd RecordLoginCommand) (*RecordLoginResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_login: %w", err)
	}

	studentID := gamification.StudentID(cmd.StudentID)
	at := cmd.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	created, err := h.ensureRecord(ctx, studentID, at)
	if err != nil {
		return nil, fmt.Errorf("record_login: %w", err)
	}

	var login gamification.LoginResult
	record, err := h.repo.Update(ctx, studentID, func(rec *gamification.Record) error {
		var applyErr error
		login, applyErr = rec.ApplyLogin(at)
		return applyErr
	})
	if err != nil {
		return nil, fmt.Errorf("record_login: %w", err)
	}

	result := &RecordLoginResult{
		StudentID: cmd.StudentID,
		Created:   created,
		Login:     login,
		Record:    record,
	}

	if result.Counted() {
		h.appendHistory(ctx, studentID, login.Award, at)
		h.publishLoginEvents(studentID, login)
		invalidateLeaderboard(ctx, h.invalidator, h.logger)
	}

	return result, nil
}

// ensureRecord lazily creates the record on first login. A concurrent create
// losing the insert race is fine: the other writer's record is used.
func (h *RecordLoginHandler) ensureRecord(ctx context.Context, studentID gamification.StudentID, at time.Time) (bool, error) {
	_, err := h.repo.Get(ctx, studentID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, shared.ErrRecordNotFound) {
		return false, err
	}

	rec, err := gamification.NewRecord(studentID, at)
	if err != nil {
		return false, err
	}

	if err := h.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, shared.ErrRecordAlreadyExists) {
			return false, nil
		}
		return false, err
	}

	publishEvent(h.publisher, h.logger, shared.NewRecordCreatedEvent(studentID.String()))
	return true, nil
}

// publishLoginEvents emits the event sequence for a counted login: streak
// break first, then the streak update, then the award chain.
func (h *RecordLoginHandler) publishLoginEvents(studentID gamification.StudentID, login gamification.LoginResult) {
	if h.publisher == nil {
		return
	}

	if login.StreakBroken {
		publishEvent(h.publisher, h.logger, shared.NewStreakBrokenEvent(
			studentID.String(),
			login.PreviousStreak,
			login.DaysMissed,
		))
	}

	publishEvent(h.publisher, h.logger, shared.NewStreakUpdatedEvent(
		studentID.String(),
		login.Streak,
		login.BestStreak,
		int(login.XPAwarded),
		login.FirstLogin,
	))

	publishAwardEvents(h.publisher, h.logger, studentID, login.Award, string(gamification.ReasonDailyLogin))
}

// appendHistory records the daily bonus in the audit trail. Best-effort.
func (h *RecordLoginHandler) appendHistory(
	ctx context.Context,
	studentID gamification.StudentID,
	outcome gamification.AwardOutcome,
	at time.Time,
) {
	if h.history == nil {
		return
	}

	err := h.history.AppendHistory(ctx, gamification.HistoryEntry{
		StudentID: studentID,
		Amount:    outcome.Amount,
		Reason:    gamification.ReasonDailyLogin,
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
