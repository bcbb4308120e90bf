// Package schedule maps calendar days onto plan cycles.
//
// All functions are pure: callers project wall-clock time into the plan's
// timezone with Today before asking which cycle a day belongs to.
package schedule

import (
	"fmt"
	"sort"
	"time"
)

func sortedDays(days []int) []int {
	out := make([]int, len(days))
	copy(out, days)
	sort.Ints(out)
	return out
}

// IsRunDay reports whether today is one of the scheduled days.
func IsRunDay(days []int, today int) bool {
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}

// CycleIndex returns the 1-based position of today within days sorted
// ascending. It fails when today is not a scheduled day.
func CycleIndex(days []int, today int) (int, error) {
	for i, d := range sortedDays(days) {
		if d == today {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("day %d is not a scheduled run day %v", today, days)
}

// ForceCycleIndex resolves a cycle for any day. A scheduled day gives its own
// index; otherwise the index of the next scheduled day this month. When every
// scheduled day has already passed the result is 1.
func ForceCycleIndex(days []int, today int) int {
	sorted := sortedDays(days)
	for i, d := range sorted {
		if d >= today {
			return i + 1
		}
	}
	return 1
}

// NextRunDay returns the smallest scheduled day after today, wrapping to the
// first scheduled day of next month. Returns 0 for an empty schedule.
func NextRunDay(days []int, today int) int {
	sorted := sortedDays(days)
	if len(sorted) == 0 {
		return 0
	}
	for _, d := range sorted {
		if d > today {
			return d
		}
	}
	return sorted[0]
}

// Today projects now into loc and returns the local calendar date at midnight.
func Today(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// LoadLocation resolves an IANA timezone name, using fallback when name is empty.
func LoadLocation(name string, fallback *time.Location) (*time.Location, error) {
	if name == "" {
		if fallback == nil {
			return time.UTC, nil
		}
		return fallback, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
