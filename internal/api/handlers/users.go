package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/access"
	"github.com/keygate-dev/keygate/internal/api/middleware"
	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/metrics"
	"github.com/keygate-dev/keygate/internal/models"
)

// UserAdminService administers storefront users.
type UserAdminService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, filter db.UserFilter) ([]*models.User, error)
	Ban(ctx context.Context, id uuid.UUID, req models.BanUserRequest, mod models.Moderator) (*models.User, error)
	Unban(ctx context.Context, id uuid.UUID, reason string, mod models.Moderator) (*models.User, error)
	Warn(ctx context.Context, id uuid.UUID, reason string, mod models.Moderator) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.UserRole) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// UsersHandler handles the admin user surface.
type UsersHandler struct {
	users    UserAdminService
	presence PresenceService
	metrics  *metrics.PrometheusMetrics
	logger   zerolog.Logger
}

// NewUsersHandler creates a users handler. presence and m may be nil.
func NewUsersHandler(users UserAdminService, presence PresenceService, m *metrics.PrometheusMetrics, logger zerolog.Logger) *UsersHandler {
	return &UsersHandler{
		users:    users,
		presence: presence,
		metrics:  m,
		logger:   logger.With().Str("component", "users_handler").Logger(),
	}
}

// RegisterRoutes registers user routes on the given admin group.
func (h *UsersHandler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("", middleware.RequirePermission(auth.PermUserRead), h.List)
		users.GET("/:id", middleware.RequirePermission(auth.PermUserRead), h.Get)
		users.POST("/:id/ban", middleware.RequirePermission(auth.PermUserBan), h.Ban)
		users.POST("/:id/unban", middleware.RequirePermission(auth.PermUserBan), h.Unban)
		users.POST("/:id/warn", middleware.RequirePermission(auth.PermUserWarn), h.Warn)
		users.PUT("/:id/role", middleware.RequirePermission(auth.PermUserRole), h.UpdateRole)
		users.DELETE("/:id", middleware.RequirePermission(auth.PermUserDelete), h.Delete)
	}
}

// moderator builds the acting moderator from the session.
func moderator(c *gin.Context) models.Moderator {
	sessionUser := middleware.GetUser(c)
	if sessionUser == nil {
		return models.Moderator{}
	}
	return models.Moderator{ID: sessionUser.ID, Username: sessionUser.Username}
}

// List handles GET /api/v1/admin/users
// @Summary List users
// @Tags users
// @Produce json
// @Param role query string false "Filter by role"
// @Param banned query bool false "Only users with a recorded ban"
// @Param search query string false "Username substring"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /admin/users [get]
func (h *UsersHandler) List(c *gin.Context) {
	filter := db.UserFilter{
		Role:       c.Query("role"),
		BannedOnly: c.Query("banned") == "true",
		Search:     c.Query("search"),
		Limit:      parseIntQuery(c, "limit", 50),
		Offset:     parseIntQuery(c, "offset", 0),
	}

	users, err := h.users.ListUsers(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// Get handles GET /api/v1/admin/users/:id
// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id} [get]
func (h *UsersHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, access.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	online := user.IsOnline
	if h.presence != nil {
		if live, err := h.presence.IsOnline(c.Request.Context(), user.ID); err == nil {
			online = live
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"user":             user,
		"is_online":        online,
		"currently_banned": user.IsCurrentlyBanned(time.Now()),
	})
}

// Ban handles POST /api/v1/admin/users/:id/ban
// @Summary Ban a user
// @Description Bans a user permanently or until expires_at. Banning an already-banned user overwrites the previous ban. The action is recorded in the moderation log.
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body models.BanUserRequest true "Ban request"
// @Success 200 {object} models.User
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id}/ban [post]
func (h *UsersHandler) Ban(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req models.BanUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	user, err := h.users.Ban(c.Request.Context(), id, req, moderator(c))
	if err != nil {
		h.respondUserError(c, err, "failed to ban user")
		return
	}

	h.recordModeration(models.ModerationBanUser)
	c.JSON(http.StatusOK, user)
}

// Unban handles POST /api/v1/admin/users/:id/unban
// @Summary Lift a user's ban
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body models.WarnUserRequest true "Unban reason"
// @Success 200 {object} models.User
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id}/unban [post]
func (h *UsersHandler) Unban(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req models.WarnUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	user, err := h.users.Unban(c.Request.Context(), id, req.Reason, moderator(c))
	if err != nil {
		h.respondUserError(c, err, "failed to unban user")
		return
	}

	h.recordModeration(models.ModerationUnbanUser)
	c.JSON(http.StatusOK, user)
}

// Warn handles POST /api/v1/admin/users/:id/warn
// @Summary Warn a user
// @Description Appends an unread warning to the user and records the action in the moderation log.
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body models.WarnUserRequest true "Warn request"
// @Success 200 {object} models.User
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id}/warn [post]
func (h *UsersHandler) Warn(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req models.WarnUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	user, err := h.users.Warn(c.Request.Context(), id, req.Reason, moderator(c))
	if err != nil {
		h.respondUserError(c, err, "failed to warn user")
		return
	}

	h.recordModeration(models.ModerationWarnUser)
	c.JSON(http.StatusOK, user)
}

// UpdateRole handles PUT /api/v1/admin/users/:id/role
// @Summary Change a user's role
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body models.UpdateRoleRequest true "Role request"
// @Success 200 {object} models.User
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id}/role [put]
func (h *UsersHandler) UpdateRole(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}

	user, err := h.users.UpdateRole(c.Request.Context(), id, req.Role)
	if err != nil {
		h.respondUserError(c, err, "failed to update role")
		return
	}

	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /api/v1/admin/users/:id
// @Summary Delete a user
// @Description Permanently removes a user. Moderation log entries referencing the user are kept.
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/users/{id} [delete]
func (h *UsersHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), id); err != nil {
		h.respondUserError(c, err, "failed to delete user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *UsersHandler) respondUserError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, access.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, access.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Msg(logMsg)
		c.JSON(http.StatusInternalServerError, gin.H{"error": logMsg})
	}
}

func (h *UsersHandler) recordModeration(t models.ModerationActionType) {
	if h.metrics != nil {
		h.metrics.RecordModerationAction(string(t))
	}
}
