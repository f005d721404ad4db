package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/ec-backend/internal/auth"
	"github.com/example/ec-backend/internal/domain/user"
)

func respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

// ExtractToken pulls the JWT from the Authorization header or, for browser
// clients, the access_token cookie.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

type contextKey string

const UserContextKey contextKey = "user"

// RequireAuth validates the token and puts the claims on the context.
func RequireAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				respondError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.Validate(tokenString)
			if err != nil {
				respondError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches claims when a valid token is present but never
// rejects the request.
func OptionalAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := ExtractToken(r); tokenString != "" {
				if claims, err := jwtService.Validate(tokenString); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), UserContextKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects callers without the admin role. Must run after
// RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(UserContextKey).(*auth.Claims)
		if !ok {
			respondError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != user.RoleAdmin {
			respondError(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClaims retrieves the caller's claims from the request context.
func GetClaims(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*auth.Claims)
	return claims, ok
}

// IsAdmin reports whether the context carries an admin token.
func IsAdmin(ctx context.Context) bool {
	claims, ok := GetClaims(ctx)
	return ok && claims.Role == user.RoleAdmin
}
