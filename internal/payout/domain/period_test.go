package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	period, err := ParsePeriod("2024-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", period.String())

	for _, value := range []string{
		"",
		"2024",
		"2024-3",
		"2024/03",
		"03-2024",
		"2024-00",
		"2024-13",
		"2024-3x",
		"202403",
		"march 2024",
	} {
		_, err := ParsePeriod(value)
		assert.ErrorIs(t, err, ErrInvalidPeriod, "value %q", value)
	}
}

func TestPeriodRangeIsHalfOpen(t *testing.T) {
	period, err := ParsePeriod("2024-02")
	require.NoError(t, err)

	start, end := period.Range()
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	// 2024 is a leap year; the range still ends at the first instant of March.
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), end)

	assert.True(t, period.Contains(start))
	assert.True(t, period.Contains(time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC)))
	assert.False(t, period.Contains(end))
	assert.False(t, period.Contains(start.Add(-time.Nanosecond)))
}

func TestPeriodDecemberRollsIntoNextYear(t *testing.T) {
	period, err := ParsePeriod("2024-12")
	require.NoError(t, err)

	_, end := period.Range()
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPeriodOf(t *testing.T) {
	period := PeriodOf(time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, "2024-03", period.String())

	// Wall-clock instants are bucketed by their UTC month.
	est := time.FixedZone("EST", -5*3600)
	period = PeriodOf(time.Date(2024, time.March, 31, 20, 0, 0, 0, est))
	assert.Equal(t, "2024-04", period.String())
}
