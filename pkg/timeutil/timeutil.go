// Package timeutil provides UTC calendar-day utilities for streak tracking.
// All gamification day math is done on UTC calendar days regardless of where
// the student logs in from, so a "day" means the same thing on every node.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// DayOf truncates a time to the start of its UTC calendar day (00:00:00 UTC).
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the start of the current UTC calendar day.
func Today() time.Time {
	return DayOf(Now())
}

// Date creates a UTC day for the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// IsSameDay checks if two times fall on the same UTC calendar day.
func IsSameDay(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// IsNextDay checks if t2 falls on the UTC calendar day after t1.
func IsNextDay(t1, t2 time.Time) bool {
	return IsSameDay(DayOf(t1).AddDate(0, 0, 1), t2)
}

// DaysBetween calculates the number of whole UTC calendar days from t1 to t2.
// The result is negative when t2 is on an earlier day than t1.
func DaysBetween(t1, t2 time.Time) int {
	d1 := DayOf(t1)
	d2 := DayOf(t2)
	return int(d2.Sub(d1).Hours() / 24)
}

// DaysSince calculates the number of UTC calendar days since the given time.
func DaysSince(t time.Time) int {
	return DaysBetween(t, Now())
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateStr(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) as a UTC day.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}
