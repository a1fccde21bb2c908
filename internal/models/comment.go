package models

import "time"

type Comment struct {
	Base
	Content   string    `gorm:"type:text;not null" json:"content"`
	TaskID    string    `gorm:"size:36;not null;index" json:"taskId"`
	UserID    string    `gorm:"size:36;not null;index" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Comment) TableName() string { return "comments" }
