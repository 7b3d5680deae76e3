package db

import (
	"context"
	"fmt"
	"time"

	"github.com/keygate-dev/keygate/internal/models"
)

// GetSystemSettings returns the singleton settings row.
func (db *DB) GetSystemSettings(ctx context.Context) (*models.SystemSettings, error) {
	var s models.SystemSettings
	err := db.Pool.QueryRow(ctx, `
		SELECT maintenance_mode, maintenance_message, updated_at
		FROM system_settings
		WHERE id = 1
	`).Scan(&s.MaintenanceMode, &s.MaintenanceMessage, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get system settings: %w", mapError(err))
	}
	return &s, nil
}

// UpdateSystemSettings applies a partial update to the singleton settings
// row. Nil request fields are left unchanged.
func (db *DB) UpdateSystemSettings(ctx context.Context, req models.UpdateSettingsRequest) error {
	query := `UPDATE system_settings SET updated_at = $1`
	args := []any{time.Now()}
	argIdx := 2

	if req.MaintenanceMode != nil {
		query += fmt.Sprintf(", maintenance_mode = $%d", argIdx)
		args = append(args, *req.MaintenanceMode)
		argIdx++
	}
	if req.MaintenanceMessage != nil {
		query += fmt.Sprintf(", maintenance_message = $%d", argIdx)
		args = append(args, *req.MaintenanceMessage)
		argIdx++
	}

	query += " WHERE id = 1"

	if _, err := db.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update system settings: %w", err)
	}
	return nil
}
