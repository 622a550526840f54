package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/tillway/internal/auth/domain"
	"github.com/smallbiznis/tillway/internal/auth/password"
)

const (
	minPasswordLen     = 8
	sessionTTL         = 24 * time.Hour
	defaultAdminName   = "admin"
	defaultAdminSecret = "changeme123"
)

// ServiceParam declares the dependencies of the auth service.
type ServiceParam struct {
	fx.In

	DB    *gorm.DB `name:"control"`
	Log   *zap.Logger
	GenID *snowflake.Node
}

// Service implements store-scoped authentication on the control plane.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

// NewService constructs the auth service.
func NewService(p ServiceParam) domain.Service {
	return &Service{db: p.DB, log: p.Log, genID: p.GenID}
}

// Login verifies the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, error) {
	username := strings.TrimSpace(strings.ToLower(req.Username))
	if username == "" || strings.TrimSpace(req.StoreID) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	var user domain.User
	err := s.db.WithContext(ctx).
		First(&user, "store_id = ? AND username = ?", req.StoreID, username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn a verification anyway so lookups and misses take similar time.
			password.Verify(req.Password, "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	session := domain.Session{
		ID:        s.genID.Generate(),
		Token:     uuid.NewString(),
		UserID:    user.ID,
		StoreID:   user.StoreID,
		Role:      user.Role,
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info("user logged in",
		zap.String("store_id", user.StoreID),
		zap.String("username", username),
	)
	return &session, nil
}

// Authenticate resolves a bearer token to its session.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrSessionNotFound
	}

	var session domain.Session
	err := s.db.WithContext(ctx).First(&session, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	if session.Expired(time.Now().UTC()) {
		return nil, domain.ErrSessionExpired
	}
	return &session, nil
}

// Logout deletes the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	err := s.db.WithContext(ctx).Delete(&domain.Session{}, "token = ?", token).Error
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CreateUser provisions a user within a store.
func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	username := strings.TrimSpace(strings.ToLower(req.Username))
	if username == "" {
		return nil, domain.ErrUsernameRequired
	}
	if len(req.Password) < minPasswordLen {
		return nil, domain.ErrPasswordTooShort
	}
	role := req.Role
	if role == "" {
		role = domain.RoleCashier
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           s.genID.Generate(),
		StoreID:      req.StoreID,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateUsername, username)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// EnsureStoreAdmin creates the default admin account for a freshly onboarded
// store. Existing admins short-circuit, so repeated calls are harmless.
func (s *Service) EnsureStoreAdmin(ctx context.Context, storeID string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("store_id = ? AND role = ?", storeID, domain.RoleAdmin).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err = s.CreateUser(ctx, domain.CreateUserRequest{
		StoreID:  storeID,
		Username: defaultAdminName,
		Password: defaultAdminSecret,
		Role:     domain.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return nil
		}
		return err
	}

	s.log.Warn("default admin created, change the password",
		zap.String("store_id", storeID),
		zap.String("username", defaultAdminName),
	)
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
