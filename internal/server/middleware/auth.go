// Package middleware provides HTTP middleware for authentication and role checks.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/shortlist/internal/retry"
	"github.com/jonathan/shortlist/internal/types"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const (
	userIDKey  ContextKey = "userID"
	profileKey ContextKey = "profile"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (UserIDGetter, error)
}

// UserIDGetter is an interface for extracting user ID from token claims.
type UserIDGetter interface {
	GetUserID() uuid.UUID
}

// ProfileLoader loads the caller's profile. A nil profile means the user is gone.
type ProfileLoader interface {
	LoadProfile(ctx context.Context, userID uuid.UUID) (*types.UserProfile, error)
}

// ErrProfileNotFound is returned by loaders that prefer an error to a nil profile.
var ErrProfileNotFound = errors.New("profile not found")

// HomePath is where a role lands after sign-in.
func HomePath(role string) string {
	switch role {
	case types.RoleClient:
		return "/client/jobs"
	case types.RoleSourcer:
		return "/sourcer/jobs"
	case types.RoleAdmin:
		return "/admin"
	default:
		return "/login"
	}
}

// AuthMiddleware validates the bearer token and stores the user ID in the request context.
func AuthMiddleware(jwtService TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Fields(r.Header.Get("Authorization"))
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.GetUserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole loads the caller's profile and rejects callers whose role is not
// in roles with 403 and the path of their own home page. It must run after
// AuthMiddleware. Transient load failures are retried; a missing profile is 401.
func RequireRole(loader ProfileLoader, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := GetUserID(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}

			profile, err := retry.Do(r.Context(), retry.ProfileFetchPolicy, func(ctx context.Context) (*types.UserProfile, error) {
				p, err := loader.LoadProfile(ctx, userID)
				if errors.Is(err, ErrProfileNotFound) {
					return nil, retry.Permanent(err)
				}
				return p, err
			})
			if errors.Is(err, ErrProfileNotFound) || (err == nil && profile == nil) {
				writeError(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			if err != nil {
				log.Printf("[auth] failed to load profile for %s: %v", userID, err)
				writeError(w, http.StatusServiceUnavailable, map[string]string{"error": "failed to load profile"})
				return
			}

			if len(roles) > 0 && !slices.Contains(roles, profile.Role) {
				writeError(w, http.StatusForbidden, map[string]string{
					"error":    "forbidden",
					"message":  fmt.Sprintf("this action requires role %s", strings.Join(roles, " or ")),
					"redirect": HomePath(profile.Role),
				})
				return
			}

			ctx := context.WithValue(r.Context(), profileKey, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) (uuid.UUID, error) {
	userID, ok := r.Context().Value(userIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("user ID not found in request context")
	}
	return userID, nil
}

// GetProfile returns the profile loaded by RequireRole.
func GetProfile(r *http.Request) (*types.UserProfile, bool) {
	p, ok := r.Context().Value(profileKey).(*types.UserProfile)
	return p, ok
}

// WithProfile stores a profile in ctx the way RequireRole does.
func WithProfile(ctx context.Context, p *types.UserProfile) context.Context {
	ctx = context.WithValue(ctx, userIDKey, p.ID)
	return context.WithValue(ctx, profileKey, p)
}
