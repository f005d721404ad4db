package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/ec-backend/internal/domain/contact"
	"github.com/example/ec-backend/internal/domain/servicereq"
)

// Contact messages

func (s *PostgresStore) CreateMessage(ctx context.Context, m *contact.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, phone, subject, body, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, m.ID, m.Name, m.Email, m.Phone, m.Subject, m.Body, m.Status, m.CreatedAt)
	return err
}

func (s *PostgresStore) ListMessages(ctx context.Context, status contact.Status, page, limit int) ([]contact.Message, int, error) {
	where := ""
	args := []any{}
	if status != "" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contact_messages`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	_, limit, offset := normalizePage(page, limit)
	query := fmt.Sprintf(`
		SELECT id, name, email, COALESCE(phone, ''), subject, body, status, created_at, updated_at
		FROM contact_messages%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []contact.Message
	for rows.Next() {
		var m contact.Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Body,
			&m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) UpdateMessageStatus(ctx context.Context, id string, status contact.Status) (*contact.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE contact_messages SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, name, email, COALESCE(phone, ''), subject, body, status, created_at, updated_at
	`, id, status)

	var m contact.Message
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Body,
		&m.Status, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Service requests

func (s *PostgresStore) CreateRequest(ctx context.Context, r *servicereq.Request) error {
	customer, err := json.Marshal(r.Customer)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO service_requests (id, request_number, customer, user_id, service_type, category,
			description, preferred_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, r.ID, r.RequestNumber, customer, nullString(r.UserID), r.ServiceType, r.Category,
		r.Description, r.PreferredDate, r.Status, r.CreatedAt)
	return err
}

const requestColumns = `id, request_number, customer, COALESCE(user_id, ''), service_type, category,
	description, preferred_date, status, COALESCE(assigned_to, ''), estimated_cost, actual_cost,
	COALESCE(admin_notes, ''), completed_date, created_at, updated_at`

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*servicereq.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (s *PostgresStore) ListRequests(ctx context.Context, f ServiceRequestFilter) ([]servicereq.Request, int, error) {
	where := ""
	args := []any{}
	next := 1

	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", next)
		args = append(args, f.Status)
		next++
	}
	if f.ServiceType != "" {
		where += fmt.Sprintf(" AND service_type = $%d", next)
		args = append(args, f.ServiceType)
		next++
	}
	if f.Category != "" {
		where += fmt.Sprintf(" AND category = $%d", next)
		args = append(args, f.Category)
		next++
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM service_requests WHERE TRUE`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	_, limit, offset := normalizePage(f.Page, f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM service_requests WHERE TRUE%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		requestColumns, where, next, next+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := collectRequests(rows)
	return out, total, err
}

func (s *PostgresStore) ListRequestsForUser(ctx context.Context, userID, email string) ([]servicereq.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM service_requests
		WHERE user_id = $1 OR customer->>'email' = $2
		ORDER BY created_at DESC
	`, userID, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, r *servicereq.Request) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE service_requests
		SET status = $2, assigned_to = $3, estimated_cost = $4, actual_cost = $5,
			admin_notes = $6, completed_date = $7, updated_at = NOW()
		WHERE id = $1
	`, r.ID, r.Status, nullString(r.AssignedTo), r.EstimatedCost, r.ActualCost,
		nullString(r.AdminNotes), r.CompletedDate)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return servicereq.ErrRequestNotFound
	}
	return nil
}

func collectRequests(rows *sql.Rows) ([]servicereq.Request, error) {
	var out []servicereq.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (*servicereq.Request, error) {
	var r servicereq.Request
	var customer []byte
	var preferred, completed sql.NullTime
	var estimated, actual sql.NullFloat64

	err := row.Scan(&r.ID, &r.RequestNumber, &customer, &r.UserID, &r.ServiceType, &r.Category,
		&r.Description, &preferred, &r.Status, &r.AssignedTo, &estimated, &actual,
		&r.AdminNotes, &completed, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, servicereq.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(customer, &r.Customer); err != nil {
		return nil, err
	}
	if preferred.Valid {
		r.PreferredDate = &preferred.Time
	}
	if completed.Valid {
		r.CompletedDate = &completed.Time
	}
	r.EstimatedCost = estimated.Float64
	r.ActualCost = actual.Float64
	return &r, nil
}
