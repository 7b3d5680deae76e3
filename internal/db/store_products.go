package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keygate-dev/keygate/internal/models"
)

// ProductFilter defines filters for querying products.
type ProductFilter struct {
	Category   string
	ListedOnly bool
	Limit      int
	Offset     int
}

// CreateProduct inserts a new product.
func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO products (id, name, description, category, price_cents,
		                      object_key, is_listed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Name, p.Description, p.Category, p.PriceCents,
		p.ObjectKey, p.IsListed, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", mapError(err))
	}
	return nil
}

// GetProductByID returns a single product by ID.
func (db *DB) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, description, category, price_cents,
		       object_key, is_listed, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents,
		&p.ObjectKey, &p.IsListed, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", mapError(err))
	}
	return &p, nil
}

// ListProducts returns products matching the filter, newest first.
func (db *DB) ListProducts(ctx context.Context, filter ProductFilter) ([]*models.Product, error) {
	query := `
		SELECT id, name, description, category, price_cents,
		       object_key, is_listed, created_at, updated_at
		FROM products
		WHERE 1=1
	`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, filter.Category)
		argIdx++
	}

	if filter.ListedOnly {
		query += " AND is_listed"
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.PriceCents,
			&p.ObjectKey, &p.IsListed, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

// UpdateProduct applies a partial update. Nil request fields are left
// unchanged.
func (db *DB) UpdateProduct(ctx context.Context, id uuid.UUID, req models.UpdateProductRequest) error {
	query := `UPDATE products SET updated_at = $1`
	args := []any{time.Now()}
	argIdx := 2

	if req.Name != nil {
		query += fmt.Sprintf(", name = $%d", argIdx)
		args = append(args, *req.Name)
		argIdx++
	}
	if req.Description != nil {
		query += fmt.Sprintf(", description = $%d", argIdx)
		args = append(args, *req.Description)
		argIdx++
	}
	if req.Category != nil {
		query += fmt.Sprintf(", category = $%d", argIdx)
		args = append(args, *req.Category)
		argIdx++
	}
	if req.PriceCents != nil {
		query += fmt.Sprintf(", price_cents = $%d", argIdx)
		args = append(args, *req.PriceCents)
		argIdx++
	}
	if req.ObjectKey != nil {
		query += fmt.Sprintf(", object_key = $%d", argIdx)
		args = append(args, *req.ObjectKey)
		argIdx++
	}
	if req.IsListed != nil {
		query += fmt.Sprintf(", is_listed = $%d", argIdx)
		args = append(args, *req.IsListed)
		argIdx++
	}

	query += fmt.Sprintf(" WHERE id = $%d", argIdx)
	args = append(args, id)

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update product: %w", ErrNotFound)
	}
	return nil
}

// DeleteProduct permanently removes a product and its comments.
func (db *DB) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete product: %w", ErrNotFound)
	}
	return nil
}
