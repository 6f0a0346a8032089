package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shortlist/internal/config"
	"github.com/jonathan/shortlist/internal/types"
)

const testJWTSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestJWTService(_ *testing.T, expirationHours int) *JWTService {
	return NewJWTService(&config.JWTConfig{
		Secret:          testJWTSecret,
		Issuer:          "shortlist-test",
		ExpirationHours: expirationHours,
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	service := setupTestJWTService(t, 24)
	userID := uuid.New()

	token, err := service.GenerateToken(userID, types.RoleSourcer)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, types.RoleSourcer, claims.Role)
	assert.Equal(t, "shortlist-test", claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestJWTService_Expired(t *testing.T) {
	service := setupTestJWTService(t, 1)
	issued := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, err := service.GenerateToken(uuid.New(), types.RoleClient)
	require.NoError(t, err)

	service.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestJWTService_RejectsTampering(t *testing.T) {
	service := setupTestJWTService(t, 24)
	token, err := service.GenerateToken(uuid.New(), types.RoleClient)
	require.NoError(t, err)

	other := NewJWTService(&config.JWTConfig{Secret: "a-completely-different-secret-value", Issuer: "shortlist-test", ExpirationHours: 24})
	_, err = other.ValidateToken(token)
	assert.Error(t, err, "wrong secret")

	parts := strings.Split(token, ".")
	_, err = service.ValidateToken(parts[0] + "." + parts[1] + ".AAAA")
	assert.Error(t, err, "bad signature")

	foreign := NewJWTService(&config.JWTConfig{Secret: testJWTSecret, Issuer: "someone-else", ExpirationHours: 24})
	foreignToken, err := foreign.GenerateToken(uuid.New(), types.RoleAdmin)
	require.NoError(t, err)
	_, err = service.ValidateToken(foreignToken)
	assert.Error(t, err, "wrong issuer")
}

func TestJWTService_RejectsOtherAlgorithms(t *testing.T) {
	service := setupTestJWTService(t, 24)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: uuid.New(), RegisteredClaims: jwt.RegisteredClaims{Issuer: "shortlist-test"}})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTService_MalformedAndEmpty(t *testing.T) {
	service := setupTestJWTService(t, 24)
	for _, tok := range []string{"", "not-a-jwt", "a.b", "a.b.c"} {
		_, err := service.ValidateToken(tok)
		assert.Error(t, err, tok)
	}
}

func TestJWTService_AsTokenValidator(t *testing.T) {
	service := setupTestJWTService(t, 24)
	userID := uuid.New()
	token, err := service.GenerateToken(userID, types.RoleAdmin)
	require.NoError(t, err)

	got, err := service.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got.GetUserID())
}
