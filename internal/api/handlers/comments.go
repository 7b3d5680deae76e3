package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/api/middleware"
	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/metrics"
	"github.com/keygate-dev/keygate/internal/models"
)

// CommentStore reads and removes comments.
type CommentStore interface {
	GetCommentByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	DeleteComment(ctx context.Context, id uuid.UUID) error
}

// CommentsHandler handles the admin comment surface.
type CommentsHandler struct {
	store    CommentStore
	recorder ModerationRecorder
	metrics  *metrics.PrometheusMetrics
	logger   zerolog.Logger
}

// NewCommentsHandler creates a comments handler. m may be nil.
func NewCommentsHandler(store CommentStore, recorder ModerationRecorder, m *metrics.PrometheusMetrics, logger zerolog.Logger) *CommentsHandler {
	return &CommentsHandler{
		store:    store,
		recorder: recorder,
		metrics:  m,
		logger:   logger.With().Str("component", "comments_handler").Logger(),
	}
}

// RegisterRoutes registers comment routes on the given admin group.
func (h *CommentsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.DELETE("/comments/:id", middleware.RequirePermission(auth.PermModerationDelete), h.Delete)
}

// Delete handles DELETE /api/v1/admin/comments/:id
// @Summary Delete a comment
// @Description Permanently removes a comment. The action and reason are recorded in the moderation log.
// @Tags comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param request body object true "Delete reason"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/comments/{id} [delete]
func (h *CommentsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	if err := h.store.DeleteComment(c.Request.Context(), id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete comment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete comment"})
		return
	}

	mod := moderator(c)
	if _, err := h.recorder.Record(c.Request.Context(), models.ModerationDeleteComment, id.String(), "comment", req.Reason, mod); err != nil {
		h.logger.Error().Err(err).Str("comment_id", id.String()).Msg("failed to record comment deletion")
	}
	if h.metrics != nil {
		h.metrics.RecordModerationAction(string(models.ModerationDeleteComment))
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
