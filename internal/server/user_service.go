package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/server/middleware"
	"github.com/jonathan/shortlist/internal/types"
)

// UserService provides business logic for user authentication operations
type UserService struct {
	db             UserStore
	passwordConfig *config.PasswordConfig
}

// NewUserService creates a new UserService with the given dependencies
func NewUserService(store UserStore, passwordConfig *config.PasswordConfig) *UserService {
	return &UserService{db: store, passwordConfig: passwordConfig}
}

// Register creates a client or sourcer account on the free tier.
func (s *UserService) Register(ctx context.Context, req *types.CreateUserRequest) (*types.UserProfile, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.db.CheckEmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, &ErrEmailAlreadyExists{Email: email}
	}

	if req.Role == types.RoleClient && strings.TrimSpace(req.CompanyName) == "" {
		return nil, &ErrValidation{Field: "company_name", Message: "required for clients"}
	}

	passwordHash, err := s.passwordConfig.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.db.CreateUserProfile(ctx, email, passwordHash, req.Role, strings.TrimSpace(req.CompanyName))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user.ToAPI(), nil
}

// Login authenticates a user and returns user data
func (s *UserService) Login(ctx context.Context, req *types.LoginRequest) (*types.UserProfile, error) {
	user, err := s.db.GetUserProfileByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	// Same error for unknown email and wrong password.
	if user == nil || user.PasswordHash == "" {
		return nil, &ErrInvalidCredentials{}
	}
	if !s.passwordConfig.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, &ErrInvalidCredentials{}
	}
	return user.ToAPI(), nil
}

// UpdatePassword updates a user's password
func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.db.GetUserProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return &ErrUserNotFound{UserID: userID}
	}

	if !s.passwordConfig.VerifyPassword(currentPassword, user.PasswordHash) {
		return &ErrPasswordMismatch{}
	}

	newPasswordHash, err := s.passwordConfig.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}
	if err := s.db.UpdatePassword(ctx, userID, newPasswordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// LoadProfile implements middleware.ProfileLoader.
func (s *UserService) LoadProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error) {
	user, err := s.db.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, middleware.ErrProfileNotFound
	}
	return user.ToAPI(), nil
}
