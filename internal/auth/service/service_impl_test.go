package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/smallbiznis/tillway/internal/auth/domain"
)

func setupService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(4)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	return &Service{db: db, log: zap.NewNop(), genID: node}
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		StoreID:  "store-a",
		Username: "Jane",
		Password: "s3cret-pass",
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	// Username matching is case-insensitive.
	session, err := svc.Login(ctx, domain.LoginRequest{
		StoreID:  "store-a",
		Username: "jane",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.StoreID != "store-a" || session.Role != domain.RoleAdmin {
		t.Fatalf("unexpected session: %+v", session)
	}

	got, err := svc.Authenticate(ctx, session.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.UserID != session.UserID {
		t.Fatalf("authenticate returned wrong session")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		StoreID:  "store-a",
		Username: "jane",
		Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err := svc.Login(ctx, domain.LoginRequest{StoreID: "store-a", Username: "jane", Password: "wrong"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	// Same username at another store is a different account.
	_, err = svc.Login(ctx, domain.LoginRequest{StoreID: "store-b", Username: "jane", Password: "s3cret-pass"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for other store, got %v", err)
	}
}

func TestUsernameUniquePerStore(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		StoreID: "store-a", Username: "jane", Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		StoreID: "store-a", Username: "jane", Password: "another-pass",
	})
	if !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected ErrDuplicateUsername, got %v", err)
	}

	// Reusing the username in another store is allowed.
	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		StoreID: "store-b", Username: "jane", Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("create user in other store: %v", err)
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		StoreID: "store-a", Username: "jane", Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	session, err := svc.Login(ctx, domain.LoginRequest{StoreID: "store-a", Username: "jane", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	if err := svc.db.Model(&domain.Session{}).Where("token = ?", session.Token).Update("expires_at", past).Error; err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	_, err = svc.Authenticate(ctx, session.Token)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, domain.CreateUserRequest{
		StoreID: "store-a", Username: "jane", Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	session, err := svc.Login(ctx, domain.LoginRequest{StoreID: "store-a", Username: "jane", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, session.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Authenticate(ctx, session.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
}

func TestEnsureStoreAdminIdempotent(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	if err := svc.EnsureStoreAdmin(ctx, "store-a"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := svc.EnsureStoreAdmin(ctx, "store-a"); err != nil {
		t.Fatalf("ensure admin twice: %v", err)
	}

	var count int64
	if err := svc.db.Model(&domain.User{}).Where("store_id = ?", "store-a").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 admin, got %d", count)
	}
}
