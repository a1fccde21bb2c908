package models

import "time"

// User is an account. Password holds the bcrypt hash and is never serialized.
type User struct {
	Base
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Name      string    `gorm:"size:100;not null;index" json:"name"`
	Role      string    `gorm:"size:20;not null;default:MEMBER" json:"role"`
	Avatar    *string   `gorm:"size:500" json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// IsAdmin reports whether the user holds the global admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// PublicUserColumns are the fields safe to expose about another user.
var PublicUserColumns = []string{"id", "email", "name", "role", "avatar", "created_at"}
