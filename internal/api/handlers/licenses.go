package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/api/middleware"
	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/licensing"
	"github.com/keygate-dev/keygate/internal/models"
)

// LicenseRegistry issues and administers licenses.
type LicenseRegistry interface {
	Issue(ctx context.Context, req models.IssueLicenseRequest) (*models.License, error)
	Get(ctx context.Context, id uuid.UUID) (*models.License, error)
	List(ctx context.Context, filter db.LicenseFilter) ([]*models.License, error)
	Count(ctx context.Context, filter db.LicenseFilter) (int64, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LicensesHandler handles the admin license surface.
type LicensesHandler struct {
	registry LicenseRegistry
	logger   zerolog.Logger
}

// NewLicensesHandler creates a licenses handler.
func NewLicensesHandler(registry LicenseRegistry, logger zerolog.Logger) *LicensesHandler {
	return &LicensesHandler{
		registry: registry,
		logger:   logger.With().Str("component", "licenses_handler").Logger(),
	}
}

// RegisterRoutes registers license routes on the given admin group.
func (h *LicensesHandler) RegisterRoutes(r *gin.RouterGroup) {
	licenses := r.Group("/licenses")
	{
		licenses.POST("", middleware.RequirePermission(auth.PermLicenseIssue), h.Issue)
		licenses.GET("", middleware.RequirePermission(auth.PermLicenseRead), h.List)
		licenses.GET("/:id", middleware.RequirePermission(auth.PermLicenseRead), h.Get)
		licenses.POST("/:id/deactivate", middleware.RequirePermission(auth.PermLicenseDeactivate), h.Deactivate)
		licenses.DELETE("/:id", middleware.RequirePermission(auth.PermLicenseDelete), h.Delete)
	}
}

// Issue handles POST /api/v1/admin/licenses
// @Summary Issue a new license
// @Description Creates a license with a freshly generated code for the given product, category, and usage ceiling.
// @Tags licenses
// @Accept json
// @Produce json
// @Param request body models.IssueLicenseRequest true "Issue request"
// @Success 201 {object} models.License
// @Failure 400 {object} map[string]string
// @Router /admin/licenses [post]
func (h *LicensesHandler) Issue(c *gin.Context) {
	var req models.IssueLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id, category, and max_usages are required"})
		return
	}

	license, err := h.registry.Issue(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, licensing.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Msg("failed to issue license")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue license"})
		return
	}

	c.JSON(http.StatusCreated, license)
}

// List handles GET /api/v1/admin/licenses
// @Summary List licenses
// @Tags licenses
// @Produce json
// @Param product_id query string false "Filter by product"
// @Param category query string false "Filter by category"
// @Param active query bool false "Only consumable licenses"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /admin/licenses [get]
func (h *LicensesHandler) List(c *gin.Context) {
	filter := db.LicenseFilter{
		ProductID:  c.Query("product_id"),
		Category:   c.Query("category"),
		ActiveOnly: c.Query("active") == "true",
		Limit:      parseIntQuery(c, "limit", 50),
		Offset:     parseIntQuery(c, "offset", 0),
	}

	licenses, err := h.registry.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list licenses")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list licenses"})
		return
	}
	if licenses == nil {
		licenses = []*models.License{}
	}

	total, err := h.registry.Count(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count licenses")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count licenses"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"licenses": licenses, "total": total})
}

// Get handles GET /api/v1/admin/licenses/:id
// @Summary Get a license
// @Tags licenses
// @Produce json
// @Param id path string true "License ID"
// @Success 200 {object} models.License
// @Failure 404 {object} map[string]string
// @Router /admin/licenses/{id} [get]
func (h *LicensesHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license id"})
		return
	}

	license, err := h.registry.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, licensing.ErrLicenseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load license"})
		return
	}

	c.JSON(http.StatusOK, license)
}

// Deactivate handles POST /api/v1/admin/licenses/:id/deactivate
// @Summary Deactivate a license
// @Description Retires a license without touching its usage counters.
// @Tags licenses
// @Produce json
// @Param id path string true "License ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/licenses/{id}/deactivate [post]
func (h *LicensesHandler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license id"})
		return
	}

	if err := h.registry.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, licensing.ErrLicenseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to deactivate license")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate license"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

// Delete handles DELETE /api/v1/admin/licenses/:id
// @Summary Delete a license
// @Tags licenses
// @Produce json
// @Param id path string true "License ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/licenses/{id} [delete]
func (h *LicensesHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid license id"})
		return
	}

	if err := h.registry.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, licensing.ErrLicenseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "license not found"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete license")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete license"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
