package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ec-backend/internal/domain/product"
)

// PostgresStore implements Store on PostgreSQL. Nested documents (order
// items, addresses, status history, payment details) live in JSONB columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres opens a connection pool and verifies it with a ping.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

func normalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit, (page - 1) * limit
}

// Product store

func (s *PostgresStore) CreateProduct(ctx context.Context, p *product.Product) error {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, sku, brand, images, stock, sales, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, p.ID, p.Name, p.Description, p.Price, nullString(p.SKU), p.Brand, images, p.Stock, p.Sales, p.IsActive, p.CreatedAt)
	return err
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, COALESCE(sku, ''), brand, images, stock, sales, is_active, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id)
	return scanProduct(row)
}

func (s *PostgresStore) ListProducts(ctx context.Context, activeOnly bool) ([]product.Product, error) {
	query := `
		SELECT id, name, description, price, COALESCE(sku, ''), brand, images, stock, sales, is_active, created_at, updated_at
		FROM products`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ReserveStock is the linearization point for concurrent order creation: the
// decrement only happens when the row still has enough stock, in one
// statement, so two racing orders can never both win the last unit.
func (s *PostgresStore) ReserveStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return product.ErrInvalidQuantity
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, sales = sales + $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, id, qty)
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

	// Distinguish missing product from insufficient stock.
	var name string
	var stock int
	err = s.db.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, id).Scan(&name, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return product.ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return &product.OutOfStockError{ProductID: id, Name: name, Requested: qty, Available: stock}
}

func (s *PostgresStore) ReleaseStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return product.ErrInvalidQuantity
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2, sales = GREATEST(sales - $2, 0), updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

func (s *PostgresStore) SetStock(ctx context.Context, id string, stock int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = NOW() WHERE id = $1
	`, id, stock)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*product.Product, error) {
	var p product.Product
	var images []byte
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.SKU, &p.Brand,
		&images, &p.Stock, &p.Sales, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product images: %w", err)
		}
	}
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
