package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role enumerates user roles within a store.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

// User is a store-scoped account on the control plane. Usernames are unique
// per store, not globally.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	StoreID      string       `gorm:"type:text;not null;uniqueIndex:idx_users_store_username" json:"store_id"`
	Username     string       `gorm:"type:text;not null;uniqueIndex:idx_users_store_username" json:"username"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	Role         Role         `gorm:"type:text;not null;default:cashier" json:"role"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Session is an opaque bearer token tied to one user and store.
type Session struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Token     string       `gorm:"type:text;not null;uniqueIndex" json:"token"`
	UserID    snowflake.ID `gorm:"not null;index" json:"user_id"`
	StoreID   string       `gorm:"type:text;not null" json:"store_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	ExpiresAt time.Time    `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
