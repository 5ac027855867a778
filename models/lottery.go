package models

import (
	"time"
)

// LotteryRound is a fixed-duration ticket pool. Exactly one round is
// active at any time; closing a round creates its successor in the same
// transaction.
type LotteryRound struct {
	ID          string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	StartAt     time.Time  `gorm:"not null" json:"start_at"`
	EndAt       time.Time  `gorm:"not null" json:"end_at"`
	IsActive    bool       `gorm:"not null;default:true;index" json:"is_active"`
	WinnerID    *string    `gorm:"type:uuid" json:"winner_id,omitempty"`
	DrawnAt     *time.Time `json:"drawn_at,omitempty"`
	MirrorTxRef *string    `gorm:"type:varchar(128)" json:"mirror_tx_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Ticket earn reasons.
const (
	TicketFromTaskCompletion = "task_completion"
	TicketFromPurchase       = "purchase"
	TicketFromAdmin          = "admin_grant"
)

// LotteryTicket is one entry in a round's pool.
type LotteryTicket struct {
	ID           string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	RoundID      string    `gorm:"type:uuid;not null;index" json:"round_id"`
	AccountID    string    `gorm:"type:uuid;not null;index" json:"account_id"`
	TicketNumber string    `gorm:"uniqueIndex;not null" json:"ticket_number"`
	EarnedFrom   string    `gorm:"not null" json:"earned_from"`
	IsUsed       bool      `gorm:"not null;default:false" json:"is_used"`
	CreatedAt    time.Time `json:"created_at"`
}
