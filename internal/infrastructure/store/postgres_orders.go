package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/ec-backend/internal/domain/order"
)

const orderColumns = `id, order_number, customer_id, items, shipping_address,
	payment_method, payment_status, order_status, subtotal, shipping_fee, tax, total,
	notes, cancel_reason, payment_details, status_history, created_at, updated_at`

func (s *PostgresStore) CreateOrder(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	history, err := json.Marshal(o.StatusHistory)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, customer_id, items, shipping_address,
			payment_method, payment_status, order_status, subtotal, shipping_fee, tax, total,
			notes, status_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`, o.ID, o.OrderNumber, o.CustomerID, items, address,
		o.PaymentMethod, o.PaymentStatus, o.Status, o.Subtotal, o.ShippingFee, o.Tax, o.Total,
		o.Notes, history, o.CreatedAt)
	return err
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PostgresStore) ListOrders(ctx context.Context, f OrderFilter) ([]order.Order, int, error) {
	where := ""
	args := []any{}
	next := 1

	if f.CustomerID != "" {
		where += fmt.Sprintf(" AND customer_id = $%d", next)
		args = append(args, f.CustomerID)
		next++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND order_status = $%d", next)
		args = append(args, f.Status)
		next++
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE TRUE`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	_, limit, offset := normalizePage(f.Page, f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE TRUE%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, next, next+1)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status order.Status, entry order.HistoryEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET order_status = $2, status_history = status_history || $3::jsonb, updated_at = NOW()
		WHERE id = $1
	`, id, status, entryJSON)
	if err != nil {
		return err
	}
	return requireOrderAffected(result)
}

func (s *PostgresStore) CancelOrder(ctx context.Context, id, reason string, entry order.HistoryEntry) error {
	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET order_status = $2, cancel_reason = $3,
			status_history = status_history || $4::jsonb, updated_at = NOW()
		WHERE id = $1 AND order_status IN ($5, $6)
	`, id, order.StatusCancelled, reason, entryJSON, order.StatusPending, order.StatusConfirmed)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return order.ErrOrderNotFound
	}
	return order.ErrNotCancellable
}

func (s *PostgresStore) SetPaymentStatus(ctx context.Context, id string, status order.PaymentStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	return requireOrderAffected(result)
}

// MarkPaid is the idempotent short-circuit: the predicate and the write are
// one statement, so two near-simultaneous confirmations cannot both apply.
func (s *PostgresStore) MarkPaid(ctx context.Context, id string, details order.PaymentDetails) (bool, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = $2, payment_details = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status <> $2
	`, id, order.PaymentPaid, detailsJSON)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, order.ErrOrderNotFound
	}
	return false, nil
}

func requireOrderAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var items, address, history []byte
	var details []byte
	var notes, cancelReason sql.NullString

	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &items, &address,
		&o.PaymentMethod, &o.PaymentStatus, &o.Status, &o.Subtotal, &o.ShippingFee, &o.Tax, &o.Total,
		&notes, &cancelReason, &details, &history, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	o.Notes = notes.String
	o.CancelReason = cancelReason.String
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(history, &o.StatusHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status history: %w", err)
	}
	if len(details) > 0 {
		o.PaymentDetails = &order.PaymentDetails{}
		if err := json.Unmarshal(details, o.PaymentDetails); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payment details: %w", err)
		}
	}
	return &o, nil
}
