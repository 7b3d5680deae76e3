package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/keygate-dev/keygate/internal/models"
)

// LicenseFilter defines filters for querying licenses.
type LicenseFilter struct {
	ProductID  string
	Category   string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// CreateLicense inserts a new license.
func (db *DB) CreateLicense(ctx context.Context, l *models.License) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO licenses (id, code, product_id, category, max_usages,
		                      current_usages, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.Code, l.ProductID, string(l.Category), l.MaxUsages,
		l.CurrentUsages, l.IsActive, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("create license: %w", mapError(err))
	}
	return nil
}

// GetLicenseByID returns a single license by ID.
func (db *DB) GetLicenseByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var l models.License
	err := db.Pool.QueryRow(ctx, `
		SELECT id, code, product_id, category, max_usages,
		       current_usages, is_active, created_at
		FROM licenses
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Code, &l.ProductID, &l.Category, &l.MaxUsages,
		&l.CurrentUsages, &l.IsActive, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get license: %w", mapError(err))
	}
	return &l, nil
}

// GetLicenseByCode returns the license matching a code within a product.
func (db *DB) GetLicenseByCode(ctx context.Context, code, productID string) (*models.License, error) {
	var l models.License
	err := db.Pool.QueryRow(ctx, `
		SELECT id, code, product_id, category, max_usages,
		       current_usages, is_active, created_at
		FROM licenses
		WHERE code = $1 AND product_id = $2
	`, code, productID).Scan(&l.ID, &l.Code, &l.ProductID, &l.Category, &l.MaxUsages,
		&l.CurrentUsages, &l.IsActive, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get license by code: %w", mapError(err))
	}
	return &l, nil
}

// ListLicenses returns licenses matching the filter, newest first.
func (db *DB) ListLicenses(ctx context.Context, filter LicenseFilter) ([]*models.License, error) {
	query := `
		SELECT id, code, product_id, category, max_usages,
		       current_usages, is_active, created_at
		FROM licenses
		WHERE 1=1
	`
	args := []any{}
	argIdx := 1

	if filter.ProductID != "" {
		query += fmt.Sprintf(" AND product_id = $%d", argIdx)
		args = append(args, filter.ProductID)
		argIdx++
	}

	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, filter.Category)
		argIdx++
	}

	if filter.ActiveOnly {
		query += " AND is_active AND current_usages < max_usages"
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
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*models.License
	for rows.Next() {
		var l models.License
		if err := rows.Scan(&l.ID, &l.Code, &l.ProductID, &l.Category, &l.MaxUsages,
			&l.CurrentUsages, &l.IsActive, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenses = append(licenses, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licenses: %w", err)
	}

	return licenses, nil
}

// RedeemLicense atomically consumes one usage of the license matching the
// given code and product. The increment succeeds only while the license is
// active and below its ceiling; two racing redemptions of a license with one
// usage left can never both succeed. Returns ErrNotFound when no consumable
// license matches.
func (db *DB) RedeemLicense(ctx context.Context, code, productID string) (*models.License, error) {
	var l models.License
	err := db.Pool.QueryRow(ctx, `
		UPDATE licenses
		SET current_usages = current_usages + 1
		WHERE code = $1 AND product_id = $2
		  AND is_active AND current_usages < max_usages
		RETURNING id, code, product_id, category, max_usages,
		          current_usages, is_active, created_at
	`, code, productID).Scan(&l.ID, &l.Code, &l.ProductID, &l.Category, &l.MaxUsages,
		&l.CurrentUsages, &l.IsActive, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("redeem license: %w", mapError(err))
	}
	return &l, nil
}

// DeactivateLicense flags a license inactive without touching its counters.
func (db *DB) DeactivateLicense(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE licenses SET is_active = FALSE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate license: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deactivate license: %w", ErrNotFound)
	}
	return nil
}

// DeleteLicense permanently removes a license.
func (db *DB) DeleteLicense(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete license: %w", ErrNotFound)
	}
	return nil
}

// CountLicenses returns the count of licenses matching the filter.
func (db *DB) CountLicenses(ctx context.Context, filter LicenseFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM licenses WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.ProductID != "" {
		query += fmt.Sprintf(" AND product_id = $%d", argIdx)
		args = append(args, filter.ProductID)
		argIdx++
	}

	if filter.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, filter.Category)
	}

	if filter.ActiveOnly {
		query += " AND is_active AND current_usages < max_usages"
	}

	var count int64
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count licenses: %w", err)
	}
	return count, nil
}
