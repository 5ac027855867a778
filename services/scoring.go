// services/scoring.go
package services

import (
	"math"
	"time"

	"block-engage-system/models"

	"gorm.io/gorm"
)

// Engagement point weights shared by weekly league scoring and H2H
// settlement. Keeping one formula avoids the two drifting apart.
const (
	pointsPerTask        = 10
	pointsPerRecognition = 5
	tokenPointFactor     = 0.1
)

// ActivityStats summarizes one account's engagement over a window.
type ActivityStats struct {
	TasksCompleted   int64
	TokensEarned     int64
	PeerRecognitions int64
}

// Points applies the engagement formula, floored to an integer.
func (st ActivityStats) Points() int64 {
	pts := float64(st.TasksCompleted)*pointsPerTask +
		float64(st.TokensEarned)*tokenPointFactor +
		float64(st.PeerRecognitions)*pointsPerRecognition
	return int64(math.Floor(pts))
}

// activityStats derives an account's stats for [start, end) from the
// activity log. All settlement decisions re-derive from stored state, so
// the sweeps stay safely re-runnable.
func activityStats(tx *gorm.DB, accountID string, start, end time.Time) (ActivityStats, error) {
	var st ActivityStats

	err := tx.Model(&models.Activity{}).
		Where("account_id = ? AND reason = ? AND occurred_at >= ? AND occurred_at < ?",
			accountID, models.ActivityTaskCompleted, start, end).
		Count(&st.TasksCompleted).Error
	if err != nil {
		return st, err
	}

	err = tx.Model(&models.Activity{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("account_id = ? AND delta > 0 AND occurred_at >= ? AND occurred_at < ?",
			accountID, start, end).
		Scan(&st.TokensEarned).Error
	if err != nil {
		return st, err
	}

	err = tx.Model(&models.Activity{}).
		Where("account_id = ? AND reason = ? AND occurred_at >= ? AND occurred_at < ?",
			accountID, models.ActivityRecognitionReceived, start, end).
		Count(&st.PeerRecognitions).Error
	return st, err
}

// isoWeekWindow returns [start, end) of the given ISO week in UTC.
// ISO weeks start on Monday; Jan 4 is always in week 1.
func isoWeekWindow(year, week int) (time.Time, time.Time) {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	start := week1Monday.AddDate(0, 0, (week-1)*7)
	return start, start.AddDate(0, 0, 7)
}
