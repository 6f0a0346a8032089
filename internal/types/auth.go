// Package types provides the request, response and domain DTOs shared by the
// HTTP layer, the submission pipeline and the CLI.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// User roles.
const (
	RoleClient  = "client"
	RoleSourcer = "sourcer"
	RoleAdmin   = "admin"
)

// CreateUserRequest represents a signup. Admins are only ever created by promotion.
type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Role        string `json:"role" validate:"required,oneof=client sourcer"`
	CompanyName string `json:"company_name,omitempty" validate:"max=200"`
}

// LoginRequest represents the login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserProfile is the API view of a user (no password hash).
type UserProfile struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	Role               string     `json:"role"`
	CompanyName        string     `json:"company_name,omitempty"`
	TierID             string     `json:"tier_id"`
	SubscriptionStatus string     `json:"subscription_status,omitempty"`
	AvailableCredits   int        `json:"available_credits"`
	JobsRemaining      int        `json:"jobs_remaining"`
	CreditsResetDate   *time.Time `json:"credits_reset_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// LoginResponse represents the login/register response with user data and authentication token.
type LoginResponse struct {
	User     *UserProfile `json:"user"`
	Token    string       `json:"token"`
	Redirect string       `json:"redirect,omitempty"`
}

// UpdatePasswordRequest represents a password update request.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,nefield=CurrentPassword"`
}

// Validate validates the CreateUserRequest using the validator.
func (r *CreateUserRequest) Validate() error {
	return validator.New().Struct(r)
}

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	return validator.New().Struct(r)
}

// Validate validates the UpdatePasswordRequest using the validator.
func (r *UpdatePasswordRequest) Validate() error {
	return validator.New().Struct(r)
}
