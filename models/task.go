package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusVerified   TaskStatus = "verified"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// Task is a unit of work with a token reward fixed at creation.
type Task struct {
	ID           string       `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Title        string       `gorm:"not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description"`
	Priority     TaskPriority `gorm:"not null;default:'medium'" json:"priority"`
	Status       TaskStatus   `gorm:"not null;default:'pending';index" json:"status"`
	AssigneeID   string       `gorm:"type:uuid;not null;index" json:"assignee_id"`
	CreatedByID  string       `gorm:"type:uuid;not null" json:"created_by_id"`
	ReviewedByID *string      `gorm:"type:uuid" json:"reviewed_by_id,omitempty"`
	TokenReward  int64        `gorm:"not null" json:"token_reward"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	CompletedAt  *time.Time   `gorm:"index" json:"completed_at,omitempty"`
	MirrorTaskID *string      `gorm:"type:varchar(128)" json:"mirror_task_id,omitempty"`
	MirrorTxRef  *string      `gorm:"type:varchar(128)" json:"mirror_tx_ref,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
