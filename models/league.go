package models

import (
	"time"

	"gorm.io/gorm"
)

// League is a recurring season competition with weekly scoring.
type League struct {
	ID             string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Name           string     `gorm:"not null" json:"name"`
	Code           string     `gorm:"uniqueIndex;not null" json:"code"` // slug of the name
	Description    string     `gorm:"type:text" json:"description"`
	Tier           int        `gorm:"not null;default:1" json:"tier"`
	MaxMembers     int        `gorm:"not null;default:50" json:"max_members"`
	SeasonStart    time.Time  `gorm:"not null" json:"season_start"`
	SeasonEnd      time.Time  `gorm:"not null" json:"season_end"`
	IsActive       bool       `gorm:"not null;default:true;index" json:"is_active"`
	CreatedByID    string     `gorm:"type:uuid;not null" json:"created_by_id"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	MirrorLeagueID *string    `gorm:"type:varchar(128)" json:"mirror_league_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// LeagueMembership links an account to a league. TotalPoints is a cache:
// after every scoring pass it equals the sum of the membership's
// WeeklyScore rows.
type LeagueMembership struct {
	ID          string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	LeagueID    string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_league_member" json:"league_id"`
	AccountID   string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_league_member" json:"account_id"`
	TotalPoints int64     `gorm:"not null;default:0" json:"total_points"`
	FinalRank   *int      `json:"final_rank,omitempty"`
	JoinedAt    time.Time `gorm:"not null" json:"joined_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WeeklyScore is one membership's points for one ISO week. The
// (membership, week, year) key makes the weekly scoring pass an upsert.
type WeeklyScore struct {
	ID               string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	MembershipID     string    `gorm:"type:uuid;not null;index;uniqueIndex:idx_membership_week" json:"membership_id"`
	WeekNumber       int       `gorm:"not null;uniqueIndex:idx_membership_week" json:"week_number"`
	Year             int       `gorm:"not null;uniqueIndex:idx_membership_week" json:"year"`
	Points           int64     `gorm:"not null" json:"points"`
	TasksCompleted   int64     `gorm:"not null" json:"tasks_completed"`
	TokensEarned     int64     `gorm:"not null" json:"tokens_earned"`
	PeerRecognitions int64     `gorm:"not null" json:"peer_recognitions"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
