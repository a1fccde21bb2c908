package models

import "time"

// File is an uploaded attachment. Filename is the generated on-disk name;
// Path is where the bytes live and is never sent to clients.
type File struct {
	Base
	Filename     string    `gorm:"size:255;not null;uniqueIndex" json:"filename"`
	OriginalName string    `gorm:"size:255;not null" json:"originalName"`
	MimeType     string    `gorm:"size:255" json:"mimeType"`
	Size         int64     `gorm:"not null" json:"size"`
	Path         string    `gorm:"size:500;not null" json:"-"`
	ProjectID    *string   `gorm:"size:36;index" json:"projectId"`
	TaskID       *string   `gorm:"size:36;index" json:"taskId"`
	UserID       string    `gorm:"size:36;not null;index" json:"userId"`
	User         *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (File) TableName() string { return "files" }
