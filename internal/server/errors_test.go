package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/shortlist/internal/csvimport"
	"github.com/jonathan/shortlist/internal/db"
	"github.com/jonathan/shortlist/internal/submission"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"email exists", &ErrEmailAlreadyExists{Email: "a@b.c"}, http.StatusConflict},
		{"bad credentials", &ErrInvalidCredentials{}, http.StatusUnauthorized},
		{"password mismatch", &ErrPasswordMismatch{}, http.StatusUnauthorized},
		{"user not found", &ErrUserNotFound{UserID: uuid.New()}, http.StatusNotFound},
		{"resource not found", &ErrNotFound{Resource: "job"}, http.StatusNotFound},
		{"wrapped db not found", fmt.Errorf("failed to delete job: job %w", db.ErrNotFound), http.StatusNotFound},
		{"pipeline job not found", submission.ErrJobNotFound, http.StatusNotFound},
		{"validation", &ErrValidation{Field: "email", Message: "required"}, http.StatusBadRequest},
		{"batch rejected", &submission.ValidationError{Message: "too many URLs"}, http.StatusBadRequest},
		{"nothing staged", submission.ErrNothingToCommit, http.StatusBadRequest},
		{"too many rows", fmt.Errorf("parse: %w", csvimport.ErrTooManyRows), http.StatusBadRequest},
		{"forbidden", &ErrForbidden{Message: "not your job"}, http.StatusForbidden},
		{"invalid transition", fmt.Errorf("claim: %w", db.ErrInvalidTransition), http.StatusConflict},
		{"job closed", submission.ErrJobClosed, http.StatusConflict},
		{"scrape failure", &submission.ScrapeError{Err: errors.New("503")}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrValidation_Message(t *testing.T) {
	assert.Equal(t, "validation error: email - required", (&ErrValidation{Field: "email", Message: "required"}).Error())
	assert.Equal(t, "validation error: bad id", (&ErrValidation{Message: "bad id"}).Error())
}
