package models

import (
	"time"

	"gorm.io/gorm"
)

// ProjectMember represents a user's membership and role within a project.
type ProjectMember struct {
	Base
	ProjectID string    `gorm:"size:36;uniqueIndex:idx_project_user;not null" json:"projectId"`
	UserID    string    `gorm:"size:36;uniqueIndex:idx_project_user;not null;index" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      string    `gorm:"size:20;not null;default:MEMBER" json:"role"` // MANAGER, MEMBER, VIEWER
	JoinedAt  time.Time `json:"joinedAt"`
}

func (ProjectMember) TableName() string { return "project_members" }

func (pm *ProjectMember) BeforeCreate(tx *gorm.DB) error {
	if err := pm.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if pm.JoinedAt.IsZero() {
		pm.JoinedAt = tx.NowFunc()
	}
	return nil
}
