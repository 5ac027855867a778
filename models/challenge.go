package models

import (
	"time"
)

// ChallengeStatus is the lifecycle state of a head-to-head challenge.
type ChallengeStatus string

const (
	ChallengeStatusPending   ChallengeStatus = "pending"
	ChallengeStatusActive    ChallengeStatus = "active"
	ChallengeStatusCompleted ChallengeStatus = "completed"
	ChallengeStatusDeclined  ChallengeStatus = "declined"
	ChallengeStatusCancelled ChallengeStatus = "cancelled"
)

// ChallengeMetric selects how the per-side score is computed at settlement.
type ChallengeMetric string

const (
	MetricTaskCompletion ChallengeMetric = "task_completion"
	MetricTokenEarning   ChallengeMetric = "token_earning"
	MetricStreak         ChallengeMetric = "streak"
	MetricCustom         ChallengeMetric = "custom"
)

// Challenge is a wager between exactly two accounts. Once active the house
// holds 2x Stake until settlement redistributes it in full.
type Challenge struct {
	ID                string          `gorm:"primaryKey;type:uuid;not null" json:"id"`
	ChallengerID      string          `gorm:"type:uuid;not null;index" json:"challenger_id"`
	OpponentID        string          `gorm:"type:uuid;not null;index" json:"opponent_id"`
	Metric            ChallengeMetric `gorm:"not null" json:"metric"`
	TargetValue       int64           `json:"target_value"`
	Stake             int64           `gorm:"not null" json:"stake"`
	Status            ChallengeStatus `gorm:"not null;default:'pending';index" json:"status"`
	StartAt           time.Time       `gorm:"not null" json:"start_at"`
	EndAt             time.Time       `gorm:"not null;index" json:"end_at"`
	ChallengerScore   int64           `json:"challenger_score"`
	OpponentScore     int64           `json:"opponent_score"`
	WinnerID          *string         `gorm:"type:uuid" json:"winner_id,omitempty"` // nil on tie or before settlement
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	MirrorChallengeID *string         `gorm:"type:varchar(128)" json:"mirror_challenge_id,omitempty"`
	MirrorTxRef       *string         `gorm:"type:varchar(128)" json:"mirror_tx_ref,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Terminal reports whether no further transitions are legal.
func (c *Challenge) Terminal() bool {
	switch c.Status {
	case ChallengeStatusCompleted, ChallengeStatusDeclined, ChallengeStatusCancelled:
		return true
	}
	return false
}
