package models

import (
	"time"

	"gorm.io/gorm"
)

// StreakTier is the highest streak milestone an account has reached.
type StreakTier string

const (
	StreakTierNone   StreakTier = "none"
	StreakTierBronze StreakTier = "bronze" // 7 days
	StreakTierSilver StreakTier = "silver" // 14 days
	StreakTierGold   StreakTier = "gold"   // 30 days
)

// Account holds a user's token balance and streak counters.
// Balance is mutated only by the ledger service.
type Account struct {
	ID             string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	ExternalUserID string     `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string     `gorm:"index;not null" json:"username"`
	Role           string     `gorm:"not null;default:'team_member'" json:"role"`
	Balance        int64      `gorm:"not null;default:0" json:"balance"`
	WalletAddress  *string    `gorm:"type:varchar(128);index" json:"wallet_address,omitempty"` // nil disables the chain mirror
	CurrentStreak  int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak  int        `gorm:"not null;default:0" json:"longest_streak"`
	StreakTier     StreakTier `gorm:"not null;default:'none'" json:"streak_tier"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Activity reasons written by the ledger and lifecycle services.
const (
	ActivityTaskCompleted       = "task_completed"
	ActivityStreakBonus         = "streak_bonus"
	ActivityRecognitionGiven    = "peer_recognition_given"
	ActivityRecognitionReceived = "peer_recognition_received"
	ActivityTokensGifted        = "tokens_gifted"
	ActivityTokensReceived      = "tokens_received"
	ActivityH2HStake            = "h2h_stake"
	ActivityH2HPayout           = "h2h_payout"
	ActivityH2HRefund           = "h2h_refund"
	ActivityLeaguePrize         = "league_prize"
	ActivityLotteryPurchase     = "lottery_ticket_purchase"
	ActivityLotteryPrize        = "lottery_prize"
	ActivityAdminAward          = "admin_award"
)

// Activity is the append-only log of every balance change (and of
// zero-delta engagement events that feed weekly scoring).
type Activity struct {
	ID          string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	AccountID   string    `gorm:"type:uuid;not null;index:idx_activities_account_date" json:"account_id"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"not null;index" json:"reason"`
	Detail      string    `json:"detail,omitempty"`
	MirrorTxRef *string   `gorm:"type:varchar(128)" json:"mirror_tx_ref,omitempty"`
	OccurredAt  time.Time `gorm:"not null;index:idx_activities_account_date" json:"occurred_at"`
	CreatedAt   time.Time `json:"created_at"`
}
