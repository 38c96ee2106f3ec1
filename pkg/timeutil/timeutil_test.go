package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOf(t *testing.T) {
	in := time.Date(2024, 1, 10, 18, 45, 12, 999, time.UTC)
	assert.Equal(t, Date(2024, 1, 10), DayOf(in))

	// Local timestamps are normalized to their UTC day.
	tz := time.FixedZone("UTC+5", 5*60*60)
	late := time.Date(2024, 1, 11, 2, 0, 0, 0, tz) // 21:00 UTC on Jan 10
	assert.Equal(t, Date(2024, 1, 10), DayOf(late))
}

func TestIsSameDay(t *testing.T) {
	assert.True(t, IsSameDay(
		time.Date(2024, 1, 10, 0, 1, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC),
	))
	assert.False(t, IsSameDay(
		time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 1, 0, 0, time.UTC),
	))
}

func TestIsNextDay(t *testing.T) {
	assert.True(t, IsNextDay(Date(2024, 1, 10), Date(2024, 1, 11)))
	assert.False(t, IsNextDay(Date(2024, 1, 10), Date(2024, 1, 10)))
	assert.False(t, IsNextDay(Date(2024, 1, 10), Date(2024, 1, 12)))
	// Month boundary.
	assert.True(t, IsNextDay(Date(2024, 1, 31), Date(2024, 2, 1)))
	// Leap day.
	assert.True(t, IsNextDay(Date(2024, 2, 28), Date(2024, 2, 29)))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(Date(2024, 1, 10), Date(2024, 1, 10)))
	assert.Equal(t, 1, DaysBetween(Date(2024, 1, 10), Date(2024, 1, 11)))
	assert.Equal(t, 5, DaysBetween(Date(2024, 1, 10), Date(2024, 1, 15)))
	assert.Equal(t, -3, DaysBetween(Date(2024, 1, 10), Date(2024, 1, 7)))

	// Time of day does not matter.
	assert.Equal(t, 1, DaysBetween(
		time.Date(2024, 1, 10, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 1, 11, 0, 1, 0, 0, time.UTC),
	))
}

func TestFormatAndParse(t *testing.T) {
	day := Date(2024, 3, 7)
	assert.Equal(t, "2024-03-07", FormatDateStr(day))

	parsed, err := ParseDate("2024-03-07")
	require.NoError(t, err)
	assert.Equal(t, day, parsed)
}
