package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keygate-dev/keygate/internal/models"
)

// UserFilter defines filters for querying users.
type UserFilter struct {
	Role       string
	BannedOnly bool
	Search     string
	Limit      int
	Offset     int
}

const userColumns = `id, username, role, is_banned, ban_reason, banned_at,
	       ban_expires_at, warnings, is_online, last_seen, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Role, &u.IsBanned, &u.BanReason, &u.BannedAt,
		&u.BanExpiresAt, &u.Warnings, &u.IsOnline, &u.LastSeen, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if u.Warnings == nil {
		u.Warnings = []models.Warning{}
	}
	return &u, nil
}

// CreateUser inserts a new user. Returns ErrDuplicate when the username is
// already taken.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO users (id, username, role, warnings, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Username, string(u.Role), u.Warnings, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapError(err))
	}
	return nil
}

// GetUserByID returns a single user by ID.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get user: %w", mapError(err))
	}
	return u, nil
}

// GetUserByUsername returns a single user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(db.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", mapError(err))
	}
	return u, nil
}

// ListUsers returns users matching the filter, newest first.
func (db *DB) ListUsers(ctx context.Context, filter UserFilter) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Role != "" {
		query += fmt.Sprintf(" AND role = $%d", argIdx)
		args = append(args, filter.Role)
		argIdx++
	}

	if filter.BannedOnly {
		query += " AND is_banned"
	}

	if filter.Search != "" {
		query += fmt.Sprintf(" AND username ILIKE $%d", argIdx)
		args = append(args, "%"+strings.ReplaceAll(filter.Search, "%", "\\%")+"%")
		argIdx++
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
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// SetUserBan records a ban on a user. A nil expiresAt means permanent.
func (db *DB) SetUserBan(ctx context.Context, id uuid.UUID, reason string, bannedAt time.Time, expiresAt *time.Time) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users
		SET is_banned = TRUE, ban_reason = $2, banned_at = $3, ban_expires_at = $4
		WHERE id = $1
	`, id, reason, bannedAt, expiresAt)
	if err != nil {
		return fmt.Errorf("set user ban: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set user ban: %w", ErrNotFound)
	}
	return nil
}

// ClearUserBan removes all ban state from a user.
func (db *DB) ClearUserBan(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users
		SET is_banned = FALSE, ban_reason = NULL, banned_at = NULL, ban_expires_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear user ban: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("clear user ban: %w", ErrNotFound)
	}
	return nil
}

// ClearExpiredBans clears ban state for all users whose time-boxed ban has
// lapsed, and returns how many rows were touched.
func (db *DB) ClearExpiredBans(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users
		SET is_banned = FALSE, ban_reason = NULL, banned_at = NULL, ban_expires_at = NULL
		WHERE is_banned AND ban_expires_at IS NOT NULL AND ban_expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("clear expired bans: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AppendWarning appends a warning to the user's warning list.
func (db *DB) AppendWarning(ctx context.Context, id uuid.UUID, w models.Warning) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users SET warnings = warnings || $2::jsonb WHERE id = $1
	`, id, []models.Warning{w})
	if err != nil {
		return fmt.Errorf("append warning: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("append warning: %w", ErrNotFound)
	}
	return nil
}

// MarkWarningsRead marks every warning on the user as read. The rewrite is
// idempotent; already-read warnings are unchanged.
func (db *DB) MarkWarningsRead(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users
		SET warnings = (
			SELECT COALESCE(jsonb_agg(w || '{"is_read": true}'::jsonb), '[]'::jsonb)
			FROM jsonb_array_elements(warnings) AS w
		)
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark warnings read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark warnings read: %w", ErrNotFound)
	}
	return nil
}

// UpdateUserRole changes the user's role.
func (db *DB) UpdateUserRole(ctx context.Context, id uuid.UUID, role models.UserRole) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users SET role = $2 WHERE id = $1
	`, id, string(role))
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user role: %w", ErrNotFound)
	}
	return nil
}

// UpdateLastSeen updates the user's presence fields.
func (db *DB) UpdateLastSeen(ctx context.Context, id uuid.UUID, online bool, lastSeen time.Time) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1
	`, id, online, lastSeen)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

// MarkStaleOffline flips is_online off for users not seen since the cutoff,
// and returns how many rows were touched.
func (db *DB) MarkStaleOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users
		SET is_online = FALSE
		WHERE is_online AND (last_seen IS NULL OR last_seen < $1)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale offline: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteUser permanently removes a user.
func (db *DB) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user: %w", ErrNotFound)
	}
	return nil
}

// CountBannedUsers returns the number of users with a ban currently recorded.
func (db *DB) CountBannedUsers(ctx context.Context) (int64, error) {
	var count int64
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE is_banned`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count banned users: %w", err)
	}
	return count, nil
}
