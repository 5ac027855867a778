// services/streak.go
package services

import (
	"errors"
	"log"
	"time"

	"block-engage-system/models"

	"gorm.io/gorm"
)

// Streak tier thresholds and one-time bonuses (paid at most once per tier
// per account; tiers never go back down within a streak).
var streakTiers = []struct {
	Days  int
	Tier  models.StreakTier
	Bonus int64
}{
	{30, models.StreakTierGold, 50},
	{14, models.StreakTierSilver, 25},
	{7, models.StreakTierBronze, 10},
}

func tierRank(t models.StreakTier) int {
	switch t {
	case models.StreakTierGold:
		return 3
	case models.StreakTierSilver:
		return 2
	case models.StreakTierBronze:
		return 1
	}
	return 0
}

func tierForStreak(days int) models.StreakTier {
	for _, t := range streakTiers {
		if days >= t.Days {
			return t.Tier
		}
	}
	return models.StreakTierNone
}

func bonusForTier(t models.StreakTier) int64 {
	for _, st := range streakTiers {
		if st.Tier == t {
			return st.Bonus
		}
	}
	return 0
}

// StreakResult reports the outcome of a streak update.
type StreakResult struct {
	Streak        int
	Longest       int
	Tier          models.StreakTier
	BonusPaid     int64
	BonusActivity *models.Activity
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// updateStreakTx advances the assignee's daily streak. Idempotent per
// calendar day: a second completion on the same day is a no-op. Runs on
// the caller's transaction so the streak bonus commits with the
// completion that earned it.
func (s *TaskService) updateStreakTx(tx *gorm.DB, accountID string) (*StreakResult, error) {
	var acct models.Account
	if err := tx.First(&acct, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := s.Now()
	if acct.LastActivityAt != nil && sameCalendarDay(*acct.LastActivityAt, now) {
		return &StreakResult{Streak: acct.CurrentStreak, Longest: acct.LongestStreak, Tier: acct.StreakTier}, nil
	}

	newStreak := 1
	if acct.LastActivityAt != nil && sameCalendarDay(*acct.LastActivityAt, now.AddDate(0, 0, -1)) {
		newStreak = acct.CurrentStreak + 1
	}

	longest := acct.LongestStreak
	if newStreak > longest {
		longest = newStreak
	}

	tier := acct.StreakTier
	var bonus int64
	if reached := tierForStreak(newStreak); tierRank(reached) > tierRank(acct.StreakTier) {
		tier = reached
		bonus = bonusForTier(reached)
	}

	updates := map[string]interface{}{
		"current_streak":   newStreak,
		"longest_streak":   longest,
		"streak_tier":      tier,
		"last_activity_at": now,
	}
	if err := tx.Model(&models.Account{}).Where("id = ?", accountID).Updates(updates).Error; err != nil {
		return nil, err
	}

	result := &StreakResult{Streak: newStreak, Longest: longest, Tier: tier}
	if bonus > 0 {
		act, err := s.Ledger.CreditTx(tx, accountID, bonus,
			models.ActivityStreakBonus, "streak milestone: "+string(tier))
		if err != nil {
			return nil, err
		}
		result.BonusPaid = bonus
		result.BonusActivity = act
	}
	return result, nil
}

// ResetInactiveStreaks is the daily sweep: any account whose last
// activity is before yesterday loses its running streak. Re-running the
// sweep on the same day matches zero rows the second time.
func (s *TaskService) ResetInactiveStreaks() (int, error) {
	now := s.Now().UTC()
	startOfYesterday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	res := s.DB.Model(&models.Account{}).
		Where("current_streak > 0 AND (last_activity_at IS NULL OR last_activity_at < ?)", startOfYesterday).
		Updates(map[string]interface{}{
			"current_streak": 0,
			"streak_tier":    models.StreakTierNone,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[STREAK] reset %d inactive streaks", res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}
