package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/api/middleware"
	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/models"
)

// SettingsStore reads and updates the singleton system settings.
type SettingsStore interface {
	GetSystemSettings(ctx context.Context) (*models.SystemSettings, error)
	UpdateSystemSettings(ctx context.Context, req models.UpdateSettingsRequest) error
}

// SettingsHandler handles the admin settings surface.
type SettingsHandler struct {
	store  SettingsStore
	logger zerolog.Logger
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(store SettingsStore, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		store:  store,
		logger: logger.With().Str("component", "settings_handler").Logger(),
	}
}

// RegisterRoutes registers settings routes on the given admin group.
func (h *SettingsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", middleware.RequirePermission(auth.PermSettingsRead), h.Get)
	r.PUT("/settings", middleware.RequirePermission(auth.PermSettingsUpdate), h.Update)
}

// Get handles GET /api/v1/admin/settings
// @Summary Get system settings
// @Tags settings
// @Produce json
// @Success 200 {object} models.SystemSettings
// @Router /admin/settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.store.GetSystemSettings(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Update handles PUT /api/v1/admin/settings
// @Summary Update system settings
// @Description Applies a partial update. Omitted fields are left unchanged.
// @Tags settings
// @Accept json
// @Produce json
// @Param request body models.UpdateSettingsRequest true "Update request"
// @Success 200 {object} models.SystemSettings
// @Failure 400 {object} map[string]string
// @Router /admin/settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.store.UpdateSystemSettings(c.Request.Context(), req); err != nil {
		h.logger.Error().Err(err).Msg("failed to update settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update settings"})
		return
	}

	settings, err := h.store.GetSystemSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, settings)
}
