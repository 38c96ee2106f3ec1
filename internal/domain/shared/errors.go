// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Storage and external service errors
	ErrStorage            = errors.New("storage error")
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "gamification", "leaderboard"
	Op      string // Operation that failed, e.g., "AwardXP", "UpdateStreak"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Gamification domain errors
var (
	ErrRecordNotFound      = NewDomainError("gamification", "Find", ErrNotFound, "gamification record not found")
	ErrRecordAlreadyExists = NewDomainError("gamification", "Create", ErrAlreadyExists, "gamification record already exists")
	ErrInvalidStudentID    = NewDomainError("gamification", "Validate", ErrInvalidID, "invalid student ID")
	ErrInvalidXPAmount     = NewDomainError("gamification", "AwardXP", ErrValueOutOfRange, "XP amount must be positive")
	ErrInvalidAwardReason  = NewDomainError("gamification", "AwardXP", ErrInvalidInput, "unknown award reason")
	ErrUnknownBadge        = NewDomainError("gamification", "Badge", ErrInvalidInput, "unknown badge")
)

// Leaderboard domain errors
var (
	ErrLeaderboardEmpty    = NewDomainError("leaderboard", "Get", ErrNotFound, "leaderboard is empty")
	ErrInvalidLimit        = NewDomainError("leaderboard", "Validate", ErrValueOutOfRange, "invalid leaderboard limit")
	ErrLeaderboardCacheOff = NewDomainError("leaderboard", "Cache", ErrServiceUnavailable, "leaderboard cache disabled")
)

// Notification domain errors
var (
	ErrNotificationFailed = NewDomainError("notification", "Send", ErrExternalService, "failed to send notification")
	ErrEmailUnavailable   = NewDomainError("email", "Send", ErrServiceUnavailable, "email provider unavailable")
	ErrEmailRateLimited   = NewDomainError("email", "Send", ErrRateLimited, "email provider rate limit exceeded")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsStorage checks if the error came from the persistence layer.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
