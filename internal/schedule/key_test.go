package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatYMCycle(t *testing.T) {
	assert.Equal(t, "2026-02#1", FormatYMCycle("2026-02", 1))
	assert.Equal(t, "2026-02", YearMonth(time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)))
}

func TestParseYMCycle(t *testing.T) {
	ym, idx, err := ParseYMCycle("2026-02#3")
	require.NoError(t, err)
	assert.Equal(t, "2026-02", ym)
	assert.Equal(t, 3, idx)

	for _, bad := range []string{"2026-02", "2026-13#1", "2026-02#x", "2026-02#0", "#1"} {
		_, _, err := ParseYMCycle(bad)
		assert.Error(t, err, bad)
	}
}

func TestPreviousYearMonth(t *testing.T) {
	prev, err := PreviousYearMonth("2026-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-12", prev)

	prev, err = PreviousYearMonth("2026-03")
	require.NoError(t, err)
	assert.Equal(t, "2026-02", prev)

	_, err = PreviousYearMonth("January")
	assert.Error(t, err)
}

func TestMonthPrefixIsKeyPrefix(t *testing.T) {
	key := FormatYMCycle("2026-02", 2)
	assert.Equal(t, "2026-02#", MonthPrefix("2026-02"))
	assert.Equal(t, MonthPrefix("2026-02"), key[:len(MonthPrefix("2026-02"))])
}
