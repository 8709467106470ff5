package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go-shop/internal/domain"
)

// PostgresCatalog reads products from the shared database.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

const productColumns = `id, category_id, name, slug, price, stock, available, created_at, updated_at`

func (c *PostgresCatalog) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
	return scanProduct(row)
}

func (c *PostgresCatalog) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func scanProduct(row *sql.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Price, &p.Stock,
		&p.Available, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &p, nil
}
