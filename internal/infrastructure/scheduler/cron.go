package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CronSchedule is a Schedule driven by a standard 5-field cron expression:
// minute hour day-of-month month day-of-week. All matching is UTC.
// Examples:
//   - "*/5 * * * *"  - every 5 minutes
//   - "0 18 * * *"   - every day at 18:00
//   - "0 0 * * 0"    - every Sunday at midnight
type CronSchedule struct {
	raw      string
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6 (0 = Sunday)
}

// NewCronSchedule parses a cron expression string.
// Supports: *, */n, n, n-m, n,m,o
func NewCronSchedule(expr string) (*CronSchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression: expected 5 fields, got %d", len(fields))
	}

	cs := &CronSchedule{raw: expr}
	var err error

	cs.minutes, err = parseCronField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field: %w", err)
	}

	cs.hours, err = parseCronField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field: %w", err)
	}

	cs.days, err = parseCronField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("invalid day field: %w", err)
	}

	cs.months, err = parseCronField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("invalid month field: %w", err)
	}

	cs.weekdays, err = parseCronField(fields[4], 0, 6)
	if err != nil {
		return nil, fmt.Errorf("invalid weekday field: %w", err)
	}

	return cs, nil
}

// MustParseCronSchedule parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronSchedule(expr string) *CronSchedule {
	cs, err := NewCronSchedule(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return cs
}

// parseCronField parses a single cron field.
func parseCronField(field string, min, max int) ([]int, error) {
	var result []int

	// Handle wildcard
	if field == "*" {
		for i := min; i <= max; i++ {
			result = append(result, i)
		}
		return result, nil
	}

	// Handle step values (*/n or n-m/s)
	if strings.Contains(field, "/") {
		parts := strings.Split(field, "/")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid step format: %s", field)
		}

		step, err := strconv.Atoi(parts[1])
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("invalid step value: %s", parts[1])
		}

		var start, end int
		if parts[0] == "*" {
			start, end = min, max
		} else if strings.Contains(parts[0], "-") {
			rangeParts := strings.Split(parts[0], "-")
			if len(rangeParts) != 2 {
				return nil, fmt.Errorf("invalid step range format: %s", parts[0])
			}
			start, err = strconv.Atoi(rangeParts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid step range start: %s", rangeParts[0])
			}
			end, err = strconv.Atoi(rangeParts[1])
			if err != nil {
				return nil, fmt.Errorf("invalid step range end: %s", rangeParts[1])
			}
		} else {
			start, err = strconv.Atoi(parts[0])
			if err != nil {
				return nil, fmt.Errorf("invalid step start: %s", parts[0])
			}
			end = max
		}

		for i := start; i <= end; i += step {
			if i >= min && i <= max {
				result = append(result, i)
			}
		}
		return result, nil
	}

	// Handle ranges (n-m)
	if strings.Contains(field, "-") {
		parts := strings.Split(field, "-")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", field)
		}

		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range start: %s", parts[0])
		}

		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range end: %s", parts[1])
		}

		for i := start; i <= end; i++ {
			if i >= min && i <= max {
				result = append(result, i)
			}
		}
		return result, nil
	}

	// Handle lists (n,m,o)
	if strings.Contains(field, ",") {
		parts := strings.Split(field, ",")
		for _, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("invalid list value: %s", p)
			}
			if v >= min && v <= max {
				result = append(result, v)
			}
		}
		sort.Ints(result)
		return result, nil
	}

	// Handle single value
	v, err := strconv.Atoi(field)
	if err != nil {
		return nil, fmt.Errorf("invalid value: %s", field)
	}
	if v < min || v > max {
		return nil, fmt.Errorf("value out of range [%d-%d]: %d", min, max, v)
	}
	return []int{v}, nil
}

// String returns the original cron expression.
func (cs *CronSchedule) String() string {
	return "cron " + cs.raw
}

// Next returns the next UTC time the expression matches after the given time.
func (cs *CronSchedule) Next(after time.Time) time.Time {
	// Start from the next minute
	t := after.UTC().Add(time.Minute).Truncate(time.Minute)

	// Maximum iterations to prevent infinite loops
	const maxIterations = 366 * 24 * 60 // One year in minutes

	for i := 0; i < maxIterations; i++ {
		if cs.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}

	// Should never reach here with valid expressions
	return time.Time{}
}

// matches checks if the given time matches the cron expression.
func (cs *CronSchedule) matches(t time.Time) bool {
	return containsInt(cs.minutes, t.Minute()) &&
		containsInt(cs.hours, t.Hour()) &&
		containsInt(cs.days, t.Day()) &&
		containsInt(cs.months, int(t.Month())) &&
		containsInt(cs.weekdays, int(t.Weekday()))
}

func containsInt(slice []int, val int) bool {
	for _, v := range slice {
		if v == val {
			return true
		}
	}
	return false
}
