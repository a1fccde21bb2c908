package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Global user roles. Project-scoped roles reuse the last three.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleMember  = "MEMBER"
	RoleViewer  = "VIEWER"
)

const (
	TaskStatusTodo       = "TODO"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusInReview   = "IN_REVIEW"
	TaskStatusDone       = "DONE"
)

const (
	PriorityLow    = "LOW"
	PriorityMedium = "MEDIUM"
	PriorityHigh   = "HIGH"
	PriorityUrgent = "URGENT"
)

// DefaultProjectColor is used when a project is created without a color.
const DefaultProjectColor = "#3b82f6"

var (
	TaskStatuses = []string{TaskStatusTodo, TaskStatusInProgress, TaskStatusInReview, TaskStatusDone}
	Priorities   = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
)

// Base holds the UUID primary key shared by every domain table.
type Base struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`
}

// BeforeCreate assigns a UUID when the caller did not set one.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
