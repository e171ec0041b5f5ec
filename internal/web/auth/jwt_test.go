package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	token, err := svc.GenerateToken("worker-1", RoleService)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleService, claims.Role)
	assert.Equal(t, "worker-1", claims.Subject)
	assert.NotNil(t, claims.ExpiresAt)
}

func TestAuthService_NoExpiry(t *testing.T) {
	svc := NewAuthService("secret", 0)

	token, err := svc.GenerateToken("", RoleAnon)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func TestAuthService_Rejects(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	_, err := svc.GenerateToken("x", "admin")
	assert.ErrorIs(t, err, ErrUnknownRole)

	other, err := NewAuthService("other", time.Hour).GenerateToken("x", RoleService)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             RoleService,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{Role: RoleService})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_RejectsUnknownRoleClaim(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "root"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrUnknownRole)
}
