package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/ec-backend/internal/api/middleware"
	"github.com/example/ec-backend/internal/auth"
	"github.com/example/ec-backend/internal/domain/user"
	"github.com/example/ec-backend/internal/infrastructure/store"
)

// AuthHandlers serves registration, login and the current-user endpoint.
type AuthHandlers struct {
	users store.UserStore
	jwt   *auth.JWTService
}

func NewAuthHandlers(users store.UserStore, jwt *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{users: users, jwt: jwt}
}

type RegisterRequest struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Phone    string        `json:"phone,omitempty"`
	Address  *user.Address `json:"address,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User      *user.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" {
		respondError(w, http.StatusBadRequest, "name and email are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	u := &user.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Address:      req.Address,
		Role:         user.RoleCustomer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.users.CreateUser(r.Context(), u); err != nil {
		respondDomainError(w, err)
		return
	}

	token, expiresAt, err := h.jwt.Generate(u.ID, u.Email, u.Role)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "Registration successful", AuthResponse{
		User: u, Token: token, ExpiresAt: expiresAt,
	})
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			respondError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		respondDomainError(w, err)
		return
	}
	if !auth.CheckPassword(req.Password, u.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !u.IsActive {
		respondDomainError(w, user.ErrDeactivated)
		return
	}

	token, expiresAt, err := h.jwt.Generate(u.ID, u.Email, u.Role)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Login successful", AuthResponse{
		User: u, Token: token, ExpiresAt: expiresAt,
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondData(w, http.StatusOK, "", u)
}
