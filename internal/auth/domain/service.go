package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrUsernameRequired   = errors.New("username_required")
	ErrPasswordTooShort   = errors.New("password_too_short")
	ErrDuplicateUsername  = errors.New("duplicate_username")
)

// LoginRequest authenticates a user against one store.
type LoginRequest struct {
	StoreID  string `json:"store_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserRequest provisions a user within a store.
type CreateUserRequest struct {
	StoreID  string `json:"store_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Service handles store-scoped authentication.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	Authenticate(ctx context.Context, token string) (*Session, error)
	Logout(ctx context.Context, token string) error
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)

	// EnsureStoreAdmin creates the store's default admin account if no admin
	// exists yet. It is safe to call repeatedly.
	EnsureStoreAdmin(ctx context.Context, storeID string) error
}
