package models

import (
	"time"
)

// MirrorJobStatus tracks a queued chain-mirror retry.
type MirrorJobStatus string

const (
	MirrorJobPending MirrorJobStatus = "pending"
	MirrorJobDone    MirrorJobStatus = "done"
	MirrorJobFailed  MirrorJobStatus = "failed" // gave up after MaxMirrorAttempts
)

// MaxMirrorAttempts bounds retries per job.
const MaxMirrorAttempts = 5

// MirrorJob is a best-effort chain call that failed inline and is retried
// by the mirror worker. The local ledger is authoritative either way.
type MirrorJob struct {
	ID            string          `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Op            string          `gorm:"not null" json:"op"` // award | spend
	WalletAddress string          `gorm:"type:varchar(128);not null" json:"wallet_address"`
	Amount        int64           `gorm:"not null" json:"amount"`
	Reason        string          `gorm:"not null" json:"reason"`
	ActivityID    *string         `gorm:"type:uuid" json:"activity_id,omitempty"`
	Status        MirrorJobStatus `gorm:"not null;default:'pending';index" json:"status"`
	Attempts      int             `gorm:"not null;default:0" json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
