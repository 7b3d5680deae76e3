package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a user-authored review on a product.
type Comment struct {
	ID             uuid.UUID `json:"id"`
	ProductID      uuid.UUID `json:"product_id"`
	AuthorID       uuid.UUID `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewComment creates a Comment.
func NewComment(productID, authorID uuid.UUID, authorUsername, body string) *Comment {
	return &Comment{
		ID:             uuid.New(),
		ProductID:      productID,
		AuthorID:       authorID,
		AuthorUsername: authorUsername,
		Body:           body,
		CreatedAt:      time.Now(),
	}
}

// CreateCommentRequest is the request body for posting a comment.
type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}
