package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tutorlink/tutorlink-gamification/internal/application/command"
	"github.com/tutorlink/tutorlink-gamification/internal/application/query"
	"github.com/tutorlink/tutorlink-gamification/internal/domain/shared"
)

// validate is the shared validator instance. Validator instances cache
// struct metadata, so one per package is the intended usage.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOS
// ══════════════════════════════════════════════════════════════════════════════

// LoginEventRequest is the body of POST /api/v1/students/{id}/login-event.
// An empty body is valid: the login is stamped with the current time.
type LoginEventRequest struct {
	// At is when the login happened, RFC 3339. Defaults to now.
	At *time.Time `json:"at,omitempty"`
}

// AwardXPRequest is the body of POST /api/v1/students/{id}/xp-awards.
// The daily login bonus is not a valid reason here; it is only granted
// through the login-event endpoint.
type AwardXPRequest struct {
	Amount int    `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,oneof=quiz_completion session_attended review_submitted bonus"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOS
// ══════════════════════════════════════════════════════════════════════════════

// LoginEventResponse reports the outcome of one login event.
type LoginEventResponse struct {
	StudentID string `json:"student_id"`

	// Created is true when this login created the student's record.
	Created bool `json:"created"`

	// Counted is true for the first login of the UTC day.
	Counted bool `json:"counted"`

	Streak     int `json:"streak"`
	BestStreak int `json:"best_streak"`
	XPAwarded  int `json:"xp_awarded"`

	StreakBroken   bool `json:"streak_broken,omitempty"`
	PreviousStreak int  `json:"previous_streak,omitempty"`
	DaysMissed     int  `json:"days_missed,omitempty"`

	XP    int    `json:"xp"`
	Level int    `json:"level"`
	Title string `json:"title"`
}

// NewLoginEventResponse maps a command result to the wire shape.
func NewLoginEventResponse(result *command.RecordLoginResult) LoginEventResponse {
	info := result.Record.Level()

	return LoginEventResponse{
		StudentID:      result.StudentID,
		Created:        result.Created,
		Counted:        result.Counted(),
		Streak:         result.Login.Streak,
		BestStreak:     result.Login.BestStreak,
		XPAwarded:      int(result.Login.XPAwarded),
		StreakBroken:   result.Login.StreakBroken,
		PreviousStreak: result.Login.PreviousStreak,
		DaysMissed:     result.Login.DaysMissed,
		XP:             int(result.Record.XP),
		Level:          info.Level,
		Title:          info.Title,
	}
}

// AwardXPResponse reports the outcome of one XP award.
type AwardXPResponse struct {
	StudentID string `json:"student_id"`
	Amount    int    `json:"amount"`
	NewTotal  int    `json:"new_total"`

	LeveledUp bool   `json:"leveled_up"`
	Level     int    `json:"level"`
	Title     string `json:"title"`

	NewBadges []string `json:"new_badges,omitempty"`
}

// NewAwardXPResponse maps a command result to the wire shape.
func NewAwardXPResponse(result *command.AwardXPResult) AwardXPResponse {
	resp := AwardXPResponse{
		StudentID: result.StudentID,
		Amount:    int(result.Outcome.Amount),
		NewTotal:  int(result.Outcome.NewTotal),
		LeveledUp: result.Outcome.LeveledUp,
		Level:     result.Outcome.LevelAfter.Level,
		Title:     result.Outcome.LevelAfter.Title,
	}

	for _, id := range result.Outcome.NewBadges {
		resp.NewBadges = append(resp.NewBadges, string(id))
	}
	return resp
}

// LeaderboardResponse is the wire shape of the leaderboard page.
type LeaderboardResponse struct {
	Entries []query.LeaderboardEntry `json:"entries"`
	Total   int                      `json:"total"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DECODING AND VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// decodeJSON decodes and validates a request body into dst. An empty body
// decodes to the zero value when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return validate.Struct(dst)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	return validate.Struct(dst)
}

// validationDetails flattens validator errors into a readable string.
func validationDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %q", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// mapDomainError translates application errors into HTTP status and error
// code. Anything unrecognized is a 500.
func mapDomainError(err error) (status int, code, message string) {
	switch {
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found", "Gamification record not found"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_failed", "Invalid request"
	case shared.IsStorage(err):
		return http.StatusInternalServerError, "storage_error", "Storage failure"
	default:
		return http.StatusInternalServerError, "internal_error", "An unexpected error occurred"
	}
}
