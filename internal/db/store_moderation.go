package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keygate-dev/keygate/internal/models"
)

// ModerationActionFilter defines filters for querying the moderation log.
type ModerationActionFilter struct {
	Type        string
	ModeratorID *uuid.UUID
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int
	Offset      int
}

// CreateModerationAction inserts a new moderation log entry. The log is
// append-only; there is no update or delete.
func (db *DB) CreateModerationAction(ctx context.Context, a *models.ModerationAction) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO moderation_actions (id, type, target_id, target_type, reason,
		                                moderator_id, moderator_username, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, string(a.Type), a.TargetID, a.TargetType, a.Reason,
		a.ModeratorID, a.ModeratorUsername, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create moderation action: %w", err)
	}
	return nil
}

// ListModerationActions returns moderation log entries matching the filter,
// newest first.
func (db *DB) ListModerationActions(ctx context.Context, filter ModerationActionFilter) ([]*models.ModerationAction, error) {
	query := `
		SELECT id, type, target_id, target_type, reason,
		       moderator_id, moderator_username, created_at
		FROM moderation_actions
		WHERE 1=1
	`
	args := []any{}
	argIdx := 1

	query, args, argIdx = appendModerationFilters(query, args, argIdx, filter)

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
		return nil, fmt.Errorf("list moderation actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.ModerationAction
	for rows.Next() {
		var a models.ModerationAction
		if err := rows.Scan(&a.ID, &a.Type, &a.TargetID, &a.TargetType, &a.Reason,
			&a.ModeratorID, &a.ModeratorUsername, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan moderation action: %w", err)
		}
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation actions: %w", err)
	}

	return actions, nil
}

// CountModerationActions returns the count of log entries matching the filter.
func (db *DB) CountModerationActions(ctx context.Context, filter ModerationActionFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM moderation_actions WHERE 1=1`
	args := []any{}
	argIdx := 1

	query, args, _ = appendModerationFilters(query, args, argIdx, filter)

	var count int64
	if err := db.Pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count moderation actions: %w", err)
	}
	return count, nil
}

// GetModerationStats aggregates the moderation log. dayStart bounds the
// "today" bucket from below.
func (db *DB) GetModerationStats(ctx context.Context, dayStart time.Time) (*models.ModerationStats, error) {
	var stats models.ModerationStats
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE created_at >= $1),
		       COUNT(*) FILTER (WHERE type = 'delete_product'),
		       COUNT(*) FILTER (WHERE type = 'delete_comment'),
		       COUNT(*) FILTER (WHERE type = 'ban_user'),
		       COUNT(*) FILTER (WHERE type = 'unban_user'),
		       COUNT(*) FILTER (WHERE type = 'warn_user')
		FROM moderation_actions
	`, dayStart).Scan(&stats.TotalActions, &stats.TodayActions,
		&stats.DeletedProducts, &stats.DeletedComments,
		&stats.BannedUsers, &stats.UnbannedUsers, &stats.WarnedUsers)
	if err != nil {
		return nil, fmt.Errorf("get moderation stats: %w", err)
	}
	return &stats, nil
}

// appendModerationFilters appends WHERE clauses for the given filter.
func appendModerationFilters(query string, args []any, argIdx int, filter ModerationActionFilter) (string, []any, int) {
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}

	if filter.ModeratorID != nil {
		query += fmt.Sprintf(" AND moderator_id = $%d", argIdx)
		args = append(args, *filter.ModeratorID)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}

	return query, args, argIdx
}
