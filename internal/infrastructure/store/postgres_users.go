package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/example/ec-backend/internal/domain/user"
)

func (s *PostgresStore) CreateUser(ctx context.Context, u *user.User) error {
	address, err := json.Marshal(u.Address)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, phone, address, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Phone, address, u.Role, u.IsActive, u.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "users_email_key") {
		return user.ErrEmailTaken
	}
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, COALESCE(phone, ''), address, role, is_active, created_at, updated_at
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, COALESCE(phone, ''), address, role, is_active, created_at, updated_at
		FROM users WHERE email = $1
	`, strings.ToLower(email))
	return scanUser(row)
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var address []byte
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone,
		&address, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(address) > 0 && string(address) != "null" {
		u.Address = &user.Address{}
		if err := json.Unmarshal(address, u.Address); err != nil {
			return nil, err
		}
	}
	return &u, nil
}
