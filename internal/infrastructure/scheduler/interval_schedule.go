package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// DailySchedule schedules a job once per UTC day at a fixed hour and minute.
// Streak reminder sweeps use this so they fire at the same wall time each day.
type DailySchedule struct {
	Hour   int
	Minute int
}

// NewDailySchedule creates a DailySchedule. Hour and minute are clamped to
// valid ranges.
func NewDailySchedule(hour, minute int) *DailySchedule {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return &DailySchedule{Hour: hour, Minute: minute}
}

// Next returns the next occurrence strictly after t.
func (s *DailySchedule) Next(t time.Time) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns the string representation of the schedule.
func (s *DailySchedule) String() string {
	return fmt.Sprintf("@daily %02d:%02d UTC", s.Hour, s.Minute)
}
