package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/keygate-dev/keygate/internal/models"
)

// CreateComment inserts a new comment.
func (db *DB) CreateComment(ctx context.Context, c *models.Comment) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO comments (id, product_id, author_id, author_username, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.ProductID, c.AuthorID, c.AuthorUsername, c.Body, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create comment: %w", mapError(err))
	}
	return nil
}

// GetCommentByID returns a single comment by ID.
func (db *DB) GetCommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var c models.Comment
	err := db.Pool.QueryRow(ctx, `
		SELECT id, product_id, author_id, author_username, body, created_at
		FROM comments
		WHERE id = $1
	`, id).Scan(&c.ID, &c.ProductID, &c.AuthorID, &c.AuthorUsername, &c.Body, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", mapError(err))
	}
	return &c, nil
}

// ListCommentsByProduct returns a product's comments, newest first.
func (db *DB) ListCommentsByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*models.Comment, error) {
	query := `
		SELECT id, product_id, author_id, author_username, body, created_at
		FROM comments
		WHERE product_id = $1
		ORDER BY created_at DESC
	`
	args := []any{productID}
	argIdx := 2

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
		argIdx++
	}

	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, offset)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []*models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ProductID, &c.AuthorID, &c.AuthorUsername, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

// DeleteComment permanently removes a comment.
func (db *DB) DeleteComment(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete comment: %w", ErrNotFound)
	}
	return nil
}
