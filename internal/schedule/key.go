package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const yearMonthLayout = "2006-01"

// YearMonth formats t as "YYYY-MM".
func YearMonth(t time.Time) string {
	return t.Format(yearMonthLayout)
}

// FormatYMCycle builds the execution key "YYYY-MM#N".
func FormatYMCycle(yearMonth string, cycleIndex int) string {
	return fmt.Sprintf("%s#%d", yearMonth, cycleIndex)
}

// ParseYMCycle splits "YYYY-MM#N" into its year-month and cycle index.
func ParseYMCycle(key string) (string, int, error) {
	ym, idx, ok := strings.Cut(key, "#")
	if !ok {
		return "", 0, fmt.Errorf("invalid cycle key %q: missing '#'", key)
	}
	if _, err := time.Parse(yearMonthLayout, ym); err != nil {
		return "", 0, fmt.Errorf("invalid cycle key %q: %w", key, err)
	}
	n, err := strconv.Atoi(idx)
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("invalid cycle key %q: bad cycle index", key)
	}
	return ym, n, nil
}

// PreviousYearMonth returns the calendar month before yearMonth.
func PreviousYearMonth(yearMonth string) (string, error) {
	t, err := time.Parse(yearMonthLayout, yearMonth)
	if err != nil {
		return "", fmt.Errorf("invalid year-month %q: %w", yearMonth, err)
	}
	return YearMonth(t.AddDate(0, -1, 0)), nil
}

// MonthPrefix is the prefix shared by every cycle key of a month.
func MonthPrefix(yearMonth string) string {
	return yearMonth + "#"
}
