package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/api/middleware"
	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/moderation"
	"github.com/keygate-dev/keygate/internal/models"
)

// ModerationLog reads the moderation audit log.
type ModerationLog interface {
	List(ctx context.Context, filter db.ModerationActionFilter) ([]*models.ModerationAction, error)
	Count(ctx context.Context, filter db.ModerationActionFilter) (int64, error)
	Stats(ctx context.Context) (*models.ModerationStats, error)
}

// ModerationHandler handles the admin moderation log surface and its live
// WebSocket feed.
type ModerationHandler struct {
	log    ModerationLog
	feed   *moderation.Feed
	logger zerolog.Logger
}

// NewModerationHandler creates a moderation handler. feed may be nil when
// the live feed is not wired.
func NewModerationHandler(log ModerationLog, feed *moderation.Feed, logger zerolog.Logger) *ModerationHandler {
	return &ModerationHandler{
		log:    log,
		feed:   feed,
		logger: logger.With().Str("component", "moderation_handler").Logger(),
	}
}

// RegisterRoutes registers moderation routes on the given admin group.
func (h *ModerationHandler) RegisterRoutes(r *gin.RouterGroup) {
	mod := r.Group("/moderation", middleware.RequirePermission(auth.PermModerationRead))
	{
		mod.GET("/actions", h.ListActions)
		mod.GET("/stats", h.Stats)
		mod.GET("/feed", h.Feed)
	}
}

// ListActions handles GET /api/v1/admin/moderation/actions
// @Summary List moderation log entries
// @Description Returns audit log entries, newest first. The log is append-only; entries survive deletion of their target.
// @Tags moderation
// @Produce json
// @Param type query string false "Filter by action type"
// @Param moderator_id query string false "Filter by moderator"
// @Param start_date query string false "RFC3339 lower bound"
// @Param end_date query string false "RFC3339 upper bound"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /admin/moderation/actions [get]
func (h *ModerationHandler) ListActions(c *gin.Context) {
	filter := db.ModerationActionFilter{
		Type:   c.Query("type"),
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}

	if raw := c.Query("moderator_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid moderator_id"})
			return
		}
		filter.ModeratorID = &id
	}
	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
			return
		}
		filter.StartDate = &t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date"})
			return
		}
		filter.EndDate = &t
	}

	actions, err := h.log.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list moderation actions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list moderation actions"})
		return
	}
	if actions == nil {
		actions = []*models.ModerationAction{}
	}

	total, err := h.log.Count(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count moderation actions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count moderation actions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"actions": actions, "total": total})
}

// Stats handles GET /api/v1/admin/moderation/stats
// @Summary Moderation log aggregates
// @Description Totals by action type plus a today bucket bounded by UTC calendar days.
// @Tags moderation
// @Produce json
// @Success 200 {object} models.ModerationStats
// @Router /admin/moderation/stats [get]
func (h *ModerationHandler) Stats(c *gin.Context) {
	stats, err := h.log.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load moderation stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load moderation stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Feed handles GET /api/v1/admin/moderation/feed
// @Summary Live moderation feed
// @Description Upgrades to a WebSocket that streams moderation log entries as they are recorded. Clients may send a filter message to narrow by action type.
// @Tags moderation
// @Success 101 {string} string "Switching Protocols"
// @Router /admin/moderation/feed [get]
func (h *ModerationHandler) Feed(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed is not available"})
		return
	}

	sessionUser := middleware.RequireUser(c)
	if sessionUser == nil {
		return
	}

	h.feed.HandleWebSocket(c.Writer, c.Request, sessionUser.ID)
}
