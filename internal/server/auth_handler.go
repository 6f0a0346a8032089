package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/shortlist/internal/server/middleware"
	"github.com/jonathan/shortlist/internal/types"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userService *UserService
	jwtService  *JWTService
	validator   *validator.Validate
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(userService *UserService, jwtService *JWTService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtService:  jwtService,
		validator:   validator.New(),
	}
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if err := h.decode(r, &req); err != nil {
		writeAuthError(w, err)
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	h.issueToken(w, http.StatusCreated, user)
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := h.decode(r, &req); err != nil {
		writeAuthError(w, err)
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	h.issueToken(w, http.StatusOK, user)
}

// UpdatePassword handles PUT /v1/auth/password for the authenticated caller.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req types.UpdatePasswordRequest
	if err := h.decode(r, &req); err != nil {
		writeAuthError(w, err)
		return
	}
	if err := h.userService.UpdatePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (h *AuthHandler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ErrValidation{Message: "invalid request body"}
	}
	if err := h.validator.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, status int, user *types.UserProfile) {
	token, err := h.jwtService.GenerateToken(user.ID, user.Role)
	if err != nil {
		log.Printf("[auth] failed to generate token for %s: %v", user.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate token"})
		return
	}
	writeJSON(w, status, types.LoginResponse{
		User:     user,
		Token:    token,
		Redirect: middleware.HomePath(user.Role),
	})
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("[auth] %v", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// validationError reports the first failed field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		ve := verrs[0]
		msg := ve.Tag()
		if ve.Param() != "" {
			msg = fmt.Sprintf("%s=%s", ve.Tag(), ve.Param())
		}
		return &ErrValidation{Field: ve.Field(), Message: msg}
	}
	return &ErrValidation{Message: "invalid request"}
}
