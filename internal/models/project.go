package models

import "time"

// Project groups tasks, members and files. Deleting a project cascades to
// all three at the database level.
type Project struct {
	Base
	Name        string          `gorm:"size:200;not null" json:"name"`
	Description *string         `gorm:"type:text" json:"description"`
	Color       string          `gorm:"size:20;not null" json:"color"`
	CreatorID   string          `gorm:"size:36;not null;index" json:"creatorId"`
	Creator     *User           `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Members     []ProjectMember `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Tasks       []Task          `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	Files       []File          `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	Count       *ProjectCount   `gorm:"-" json:"_count,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"index" json:"updatedAt"`
}

// ProjectCount carries relation counts alongside a project.
type ProjectCount struct {
	Tasks   int64  `json:"tasks"`
	Members int64  `json:"members"`
	Files   *int64 `json:"files,omitempty"`
}

func (Project) TableName() string { return "projects" }
