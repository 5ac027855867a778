package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPointsFormulaFloors(t *testing.T) {
	st := ActivityStats{TasksCompleted: 3, TokensEarned: 17, PeerRecognitions: 2}
	// 3x10 + floor-able 1.7 + 2x5 = 41.7 -> 41
	assert.Equal(t, int64(41), st.Points())

	assert.Equal(t, int64(0), ActivityStats{}.Points())
}

func TestIsoWeekWindow(t *testing.T) {
	// ISO week 1 of 2025 starts Monday 2024-12-30
	start, end := isoWeekWindow(2025, 1)
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), end)

	start, end = isoWeekWindow(2025, 10)
	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), end)

	// every window boundary should round-trip through ISOWeek
	year, week := start.ISOWeek()
	assert.Equal(t, 2025, year)
	assert.Equal(t, 10, week)
}
