package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/api/middleware"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/licensing"
	"github.com/keygate-dev/keygate/internal/metrics"
	"github.com/keygate-dev/keygate/internal/models"
)

// LicenseValidator redeems license codes.
type LicenseValidator interface {
	Validate(ctx context.Context, req models.ValidateLicenseRequest) (*models.License, error)
}

// CatalogStore reads the public product catalog and comments.
type CatalogStore interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter db.ProductFilter) ([]*models.Product, error)
	ListCommentsByProduct(ctx context.Context, productID uuid.UUID, limit, offset int) ([]*models.Comment, error)
	CreateComment(ctx context.Context, c *models.Comment) error
	GetSystemSettings(ctx context.Context) (*models.SystemSettings, error)
}

// Downloader presigns artifact download URLs.
type Downloader interface {
	PresignDownload(ctx context.Context, objectKey string) (string, error)
}

// StorefrontHandler handles the public storefront surface: license
// validation, the product catalog, and comments.
type StorefrontHandler struct {
	validator LicenseValidator
	store     CatalogStore
	downloads Downloader
	metrics   *metrics.PrometheusMetrics
	logger    zerolog.Logger
}

// NewStorefrontHandler creates a storefront handler. downloads and m may be
// nil when object storage or metrics are not wired.
func NewStorefrontHandler(validator LicenseValidator, store CatalogStore, downloads Downloader, m *metrics.PrometheusMetrics, logger zerolog.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		validator: validator,
		store:     store,
		downloads: downloads,
		metrics:   m,
		logger:    logger.With().Str("component", "storefront_handler").Logger(),
	}
}

// RegisterRoutes registers storefront routes on the given group. validate
// is a separate group so a stricter rate limit can be attached to it.
func (h *StorefrontHandler) RegisterRoutes(r, validate *gin.RouterGroup) {
	validate.POST("/validate", h.Validate)

	r.GET("/products", h.ListProducts)
	r.GET("/products/:id", h.GetProduct)
	r.GET("/products/:id/comments", h.ListComments)
	r.POST("/products/:id/comments", h.CreateComment)
}

// Validate handles POST /api/v1/validate
// @Summary Validate and redeem a license code
// @Description Consumes one usage of the code against the product. Every failure mode returns the same invalid-license error. When the product ships an artifact and object storage is configured, a short-lived download URL is included.
// @Tags storefront
// @Accept json
// @Produce json
// @Param request body models.ValidateLicenseRequest true "Validation request"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /validate [post]
func (h *StorefrontHandler) Validate(c *gin.Context) {
	settings, err := h.store.GetSystemSettings(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load system settings")
	} else if settings.MaintenanceMode {
		msg := settings.MaintenanceMessage
		if msg == "" {
			msg = "storefront is under maintenance"
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msg})
		return
	}

	var req models.ValidateLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and product_id are required"})
		return
	}

	license, err := h.validator.Validate(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, licensing.ErrInvalidArgument):
			h.recordValidation("invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": "code and product_id are required"})
		case errors.Is(err, licensing.ErrInvalidLicense):
			h.recordValidation("invalid")
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid license"})
		default:
			h.recordValidation("error")
			h.logger.Error().Err(err).Msg("license validation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		}
		return
	}

	h.recordValidation("redeemed")
	if h.metrics != nil {
		h.metrics.RecordRedemption(license.ProductID)
	}

	resp := gin.H{
		"license":          license,
		"remaining_usages": license.RemainingUsages(),
	}
	if url := h.presignArtifact(c.Request.Context(), license.ProductID); url != "" {
		resp["download_url"] = url
	}

	c.JSON(http.StatusOK, resp)
}

// presignArtifact returns a download URL for the product's artifact, or ""
// when there is none. Presign failures never fail the redemption.
func (h *StorefrontHandler) presignArtifact(ctx context.Context, productID string) string {
	if h.downloads == nil {
		return ""
	}

	id, err := uuid.Parse(productID)
	if err != nil {
		return ""
	}
	product, err := h.store.GetProductByID(ctx, id)
	if err != nil || product.ObjectKey == "" {
		return ""
	}

	url, err := h.downloads.PresignDownload(ctx, product.ObjectKey)
	if err != nil {
		h.logger.Warn().Err(err).Str("product_id", productID).Msg("failed to presign artifact")
		return ""
	}
	return url
}

func (h *StorefrontHandler) recordValidation(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordValidation(outcome)
	}
}

// ListProducts handles GET /api/v1/products
// @Summary List the product catalog
// @Description Returns listed products only. Delisted products are visible to admins via the admin surface.
// @Tags storefront
// @Produce json
// @Param category query string false "Filter by category"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /products [get]
func (h *StorefrontHandler) ListProducts(c *gin.Context) {
	filter := db.ProductFilter{
		Category:   c.Query("category"),
		ListedOnly: true,
		Limit:      parseIntQuery(c, "limit", 50),
		Offset:     parseIntQuery(c, "offset", 0),
	}

	products, err := h.store.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list products")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list products"})
		return
	}
	if products == nil {
		products = []*models.Product{}
	}

	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// GetProduct handles GET /api/v1/products/:id
// @Summary Get a product
// @Tags storefront
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.Product
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func (h *StorefrontHandler) GetProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load product"})
		return
	}

	// Delisted products are not visible on the public surface
	if !product.IsListed {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// ListComments handles GET /api/v1/products/:id/comments
// @Summary List a product's comments
// @Tags storefront
// @Produce json
// @Param id path string true "Product ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /products/{id}/comments [get]
func (h *StorefrontHandler) ListComments(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	comments, err := h.store.ListCommentsByProduct(c.Request.Context(), id,
		parseIntQuery(c, "limit", 50), parseIntQuery(c, "offset", 0))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list comments")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list comments"})
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments, "count": len(comments)})
}

// CreateComment handles POST /api/v1/products/:id/comments
// @Summary Post a comment on a product
// @Tags storefront
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param request body models.CreateCommentRequest true "Comment body"
// @Success 201 {object} models.Comment
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id}/comments [post]
func (h *StorefrontHandler) CreateComment(c *gin.Context) {
	sessionUser := middleware.RequireUser(c)
	if sessionUser == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
		return
	}

	if _, err := h.store.GetProductByID(c.Request.Context(), id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load product"})
		return
	}

	comment := models.NewComment(id, sessionUser.ID, sessionUser.Username, req.Body)
	if err := h.store.CreateComment(c.Request.Context(), comment); err != nil {
		h.logger.Error().Err(err).Msg("failed to create comment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create comment"})
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// parseIntQuery reads a non-negative integer query parameter.
func parseIntQuery(c *gin.Context, name string, defaultVal int) int {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
