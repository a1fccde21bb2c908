package models

import (
	"time"

	"gorm.io/datatypes"
)

// Task is a card on a project board. AssigneeNames are free-text labels and
// do not reference users.
type Task struct {
	Base
	Title         string                      `gorm:"size:255;not null" json:"title"`
	Description   *string                     `gorm:"type:text" json:"description"`
	Status        string                      `gorm:"size:20;not null;index" json:"status"`
	Priority      string                      `gorm:"size:20;not null;index" json:"priority"`
	DueDate       *time.Time                  `gorm:"index" json:"dueDate"`
	Position      int                         `gorm:"not null;default:0" json:"position"`
	AssigneeNames datatypes.JSONSlice[string] `json:"assigneeNames"`
	ProjectID     string                      `gorm:"size:36;not null;index" json:"projectId"`
	Project       *Project                    `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	CreatorID     string                      `gorm:"size:36;not null;index" json:"creatorId"`
	Creator       *User                       `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Comments      []Comment                   `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	Files         []File                      `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"files,omitempty"`
	Count         *TaskCount                  `gorm:"-" json:"_count,omitempty"`
	CreatedAt     time.Time                   `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time                   `json:"updatedAt"`
}

type TaskCount struct {
	Comments int64 `json:"comments"`
	Files    int64 `json:"files"`
}

func (Task) TableName() string { return "tasks" }
