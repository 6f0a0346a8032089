// Package server provides the HTTP API for job intake, candidate sourcing and billing.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/csvimport"
	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/submission"
)

// ErrEmailAlreadyExists indicates email is already registered
type ErrEmailAlreadyExists struct {
	Email string
}

func (e *ErrEmailAlreadyExists) Error() string {
	return fmt.Sprintf("email already registered: %s", e.Email)
}

// ErrInvalidCredentials indicates invalid login credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid email or password"
}

// ErrUserNotFound indicates user was not found
type ErrUserNotFound struct {
	UserID uuid.UUID
}

func (e *ErrUserNotFound) Error() string {
	return fmt.Sprintf("user not found: %s", e.UserID)
}

// ErrPasswordMismatch indicates current password is incorrect
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string {
	return "current password is incorrect"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound is a missing resource.
type ErrNotFound struct {
	Resource string
}

func (e *ErrNotFound) Error() string {
	return e.Resource + " not found"
}

// ErrForbidden is an authenticated caller acting on something that is not theirs.
type ErrForbidden struct {
	Message string
}

func (e *ErrForbidden) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		emailExists *ErrEmailAlreadyExists
		badCreds    *ErrInvalidCredentials
		mismatch    *ErrPasswordMismatch
		userMissing *ErrUserNotFound
		notFound    *ErrNotFound
		validation  *ErrValidation
		forbidden   *ErrForbidden
		subInvalid  *submission.ValidationError
		scrapeErr   *submission.ScrapeError
	)
	switch {
	case errors.As(err, &emailExists):
		return http.StatusConflict
	case errors.As(err, &badCreds), errors.As(err, &mismatch):
		return http.StatusUnauthorized
	case errors.As(err, &userMissing), errors.As(err, &notFound),
		errors.Is(err, db.ErrNotFound), errors.Is(err, submission.ErrJobNotFound):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &subInvalid),
		errors.Is(err, submission.ErrNothingToCommit),
		errors.Is(err, csvimport.ErrTooManyRows), errors.Is(err, csvimport.ErrFileTooLarge):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.Is(err, db.ErrInvalidTransition), errors.Is(err, submission.ErrJobClosed):
		return http.StatusConflict
	case errors.As(err, &scrapeErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
