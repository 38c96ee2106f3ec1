// Package shared contains common domain types, errors, and events that are
// used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Gamification record events
	EventRecordCreated EventType = "gamification.record_created"

	// Progress events
	EventXPAwarded     EventType = "gamification.xp_awarded"
	EventLevelUp       EventType = "gamification.level_up"
	EventBadgeUnlocked EventType = "gamification.badge_unlocked"
	EventStreakUpdated EventType = "gamification.streak_updated"
	EventStreakBroken  EventType = "gamification.streak_broken"

	// Leaderboard events
	EventLeaderboardRebuilt EventType = "leaderboard.rebuilt"

	// Notification events
	EventNotificationSent   EventType = "notification.sent"
	EventNotificationFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// RecordCreatedEvent is emitted when a student's gamification record is
// lazily created on their first qualifying login.
type RecordCreatedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
}

// Payload implements Event interface.
func (e RecordCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
	}
}

// NewRecordCreatedEvent creates a new RecordCreatedEvent.
func NewRecordCreatedEvent(studentID string) RecordCreatedEvent {
	return RecordCreatedEvent{
		BaseEvent: NewBaseEvent(EventRecordCreated, studentID),
		StudentID: studentID,
	}
}

// XPAwardedEvent is emitted when a student gains XP. It carries the full
// outcome of the award so a single subscriber can present XP gain, level-up
// and badge unlocks in that order.
type XPAwardedEvent struct {
	BaseEvent
	StudentID string   `json:"student_id"`
	Amount    int      `json:"amount"`
	NewTotal  int      `json:"new_total"`
	Reason    string   `json:"reason"` // e.g., "quiz_completion", "daily_login"
	LeveledUp bool     `json:"leveled_up"`
	NewLevel  int      `json:"new_level"`
	NewTitle  string   `json:"new_title"`
	NewBadges []string `json:"new_badges,omitempty"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"amount":     e.Amount,
		"new_total":  e.NewTotal,
		"reason":     e.Reason,
		"leveled_up": e.LeveledUp,
		"new_level":  e.NewLevel,
		"new_title":  e.NewTitle,
		"new_badges": e.NewBadges,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(studentID string, amount, newTotal int, reason string) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, studentID),
		StudentID: studentID,
		Amount:    amount,
		NewTotal:  newTotal,
		Reason:    reason,
	}
}

// WithLevelUp marks the award as having crossed a level threshold.
func (e XPAwardedEvent) WithLevelUp(level int, title string) XPAwardedEvent {
	e.LeveledUp = true
	e.NewLevel = level
	e.NewTitle = title
	return e
}

// WithBadges attaches badges unlocked by this award, in unlock order.
func (e XPAwardedEvent) WithBadges(badgeIDs []string) XPAwardedEvent {
	e.NewBadges = badgeIDs
	return e
}

// LevelUpEvent is emitted when a student's XP crosses a level threshold.
type LevelUpEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	NewTitle  string `json:"new_title"`
	TotalXP   int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
		"new_title":  e.NewTitle,
		"total_xp":   e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(studentID string, oldLevel, newLevel int, newTitle string, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, studentID),
		StudentID: studentID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		NewTitle:  newTitle,
		TotalXP:   totalXP,
	}
}

// BadgeUnlockedEvent is emitted once per newly unlocked badge.
type BadgeUnlockedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	BadgeID   string `json:"badge_id"`
	BadgeName string `json:"badge_name"`
	Icon      string `json:"icon"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"badge_id":   e.BadgeID,
		"badge_name": e.BadgeName,
		"icon":       e.Icon,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(studentID, badgeID, badgeName, icon string) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEvent(EventBadgeUnlocked, studentID),
		StudentID: studentID,
		BadgeID:   badgeID,
		BadgeName: badgeName,
		Icon:      icon,
	}
}

// StreakUpdatedEvent is emitted when a login extends or starts a streak.
// Same-day repeat logins do not emit it.
type StreakUpdatedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	Streak     int    `json:"streak"`
	BestStreak int    `json:"best_streak"`
	XPAwarded  int    `json:"xp_awarded"`
	FirstLogin bool   `json:"first_login"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"streak":      e.Streak,
		"best_streak": e.BestStreak,
		"xp_awarded":  e.XPAwarded,
		"first_login": e.FirstLogin,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(studentID string, streak, bestStreak, xpAwarded int, firstLogin bool) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent:  NewBaseEvent(EventStreakUpdated, studentID),
		StudentID:  studentID,
		Streak:     streak,
		BestStreak: bestStreak,
		XPAwarded:  xpAwarded,
		FirstLogin: firstLogin,
	}
}

// StreakBrokenEvent is emitted when a gap of more than one day resets a streak.
type StreakBrokenEvent struct {
	BaseEvent
	StudentID      string `json:"student_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(studentID string, previousStreak, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, studentID),
		StudentID:      studentID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardRebuiltEvent is emitted when the worker rebuilds the cached
// leaderboard.
type LeaderboardRebuiltEvent struct {
	BaseEvent
	Entries  int           `json:"entries"`
	Duration time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e LeaderboardRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"entries":  e.Entries,
		"duration": e.Duration.String(),
	}
}

// NewLeaderboardRebuiltEvent creates a new LeaderboardRebuiltEvent.
func NewLeaderboardRebuiltEvent(entries int, duration time.Duration) LeaderboardRebuiltEvent {
	return LeaderboardRebuiltEvent{
		BaseEvent: NewBaseEvent(EventLeaderboardRebuilt, "leaderboard"),
		Entries:   entries,
		Duration:  duration,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
