package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService("test-secret-key-for-testing-purposes", 24*time.Hour)
}

func TestNewJWTService(t *testing.T) {
	service := newTestJWTService()
	assert.NotNil(t, service)
	assert.Equal(t, 24*time.Hour, service.Expiry())
}

func TestJWTService_Generate_Success(t *testing.T) {
	service := newTestJWTService()

	token, expiresAt, err := service.Generate("user-123", "test@example.com", "customer")

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(25*time.Hour)))
}

func TestJWTService_Validate_Valid(t *testing.T) {
	service := newTestJWTService()

	userID := "user-456"
	email := "test@example.com"
	role := "admin"

	token, _, err := service.Generate(userID, email, role)
	require.NoError(t, err)

	claims, err := service.Validate(token)

	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, email, claims.Email)
	assert.Equal(t, role, claims.Role)
	assert.Equal(t, userID, claims.Subject)
}

func TestJWTService_Validate_Expired(t *testing.T) {
	service := NewJWTService("test-secret", 1*time.Millisecond)

	token, _, err := service.Generate("user-123", "test@example.com", "customer")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	claims, err := service.Validate(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestJWTService_Validate_Invalid(t *testing.T) {
	service := newTestJWTService()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTService_Validate_WrongSignature(t *testing.T) {
	service1 := NewJWTService("secret-key-1", 24*time.Hour)
	service2 := NewJWTService("secret-key-2", 24*time.Hour)

	token, _, err := service1.Generate("user-123", "test@example.com", "customer")
	require.NoError(t, err)

	claims, err := service2.Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestJWTService_Validate_WrongAlgorithm(t *testing.T) {
	service := newTestJWTService()

	// A token signed with alg=none must never validate.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "user-123",
		Email:  "test@example.com",
		Role:   "customer",
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := service.Validate(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}
