package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ec-backend/internal/auth"
)

func newTestService() *auth.JWTService {
	return auth.NewJWTService("test-secret", time.Hour)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ExtractToken(r))

	r.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", ExtractToken(r))

	// Header wins over cookie.
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})
	assert.Equal(t, "abc123", ExtractToken(r))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(&http.Cookie{Name: "access_token", Value: "cookie-token"})
	assert.Equal(t, "cookie-token", ExtractToken(r2))
}

func TestRequireAuth(t *testing.T) {
	svc := newTestService()
	handler := RequireAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r.Context())
		require.True(t, ok)
		assert.Equal(t, "user-1", claims.UserID)
		w.WriteHeader(http.StatusOK)
	}))

	token, _, err := svc.Generate("user-1", "u@example.com", "customer")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing and garbage tokens are both 401.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	svc := newTestService()
	handler := RequireAuth(svc)(RequireAdmin(okHandler()))

	adminToken, _, err := svc.Generate("a1", "a@example.com", "admin")
	require.NoError(t, err)
	customerToken, _, err := svc.Generate("u1", "c@example.com", "customer")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	svc := newTestService()

	var sawClaims bool
	handler := OptionalAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawClaims = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// No token: request passes, no claims.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sawClaims)

	token, _, err := svc.Generate("u1", "c@example.com", "customer")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sawClaims)
}
