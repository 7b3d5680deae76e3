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

// ProductStore manages the product catalog.
type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter db.ProductFilter) ([]*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req models.UpdateProductRequest) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

// ModerationRecorder appends entries to the moderation log.
type ModerationRecorder interface {
	Record(ctx context.Context, t models.ModerationActionType, targetID, targetType, reason string, mod models.Moderator) (*models.ModerationAction, error)
}

// deleteRequest is the request body for destructive admin deletes. The
// reason feeds the moderation log and is mandatory.
type deleteRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ProductsHandler handles the admin product surface.
type ProductsHandler struct {
	store    ProductStore
	recorder ModerationRecorder
	metrics  *metrics.PrometheusMetrics
	logger   zerolog.Logger
}

// NewProductsHandler creates a products handler. m may be nil.
func NewProductsHandler(store ProductStore, recorder ModerationRecorder, m *metrics.PrometheusMetrics, logger zerolog.Logger) *ProductsHandler {
	return &ProductsHandler{
		store:    store,
		recorder: recorder,
		metrics:  m,
		logger:   logger.With().Str("component", "products_handler").Logger(),
	}
}

// RegisterRoutes registers product routes on the given admin group.
func (h *ProductsHandler) RegisterRoutes(r *gin.RouterGroup) {
	products := r.Group("/products")
	{
		products.GET("", middleware.RequirePermission(auth.PermProductRead), h.List)
		products.POST("", middleware.RequirePermission(auth.PermProductCreate), h.Create)
		products.PUT("/:id", middleware.RequirePermission(auth.PermProductUpdate), h.Update)
		products.DELETE("/:id", middleware.RequirePermission(auth.PermProductDelete), h.Delete)
	}
}

// List handles GET /api/v1/admin/products
// @Summary List all products including delisted ones
// @Tags products
// @Produce json
// @Param category query string false "Filter by category"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /admin/products [get]
func (h *ProductsHandler) List(c *gin.Context) {
	filter := db.ProductFilter{
		Category: c.Query("category"),
		Limit:    parseIntQuery(c, "limit", 50),
		Offset:   parseIntQuery(c, "offset", 0),
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

// Create handles POST /api/v1/admin/products
// @Summary Create a product
// @Tags products
// @Accept json
// @Produce json
// @Param request body models.CreateProductRequest true "Create request"
// @Success 201 {object} models.Product
// @Failure 400 {object} map[string]string
// @Router /admin/products [post]
func (h *ProductsHandler) Create(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and category are required"})
		return
	}

	product := models.NewProduct(req.Name, req.Description, req.Category, req.PriceCents)
	if req.ObjectKey != "" {
		product.WithObjectKey(req.ObjectKey)
	}

	if err := h.store.CreateProduct(c.Request.Context(), product); err != nil {
		h.logger.Error().Err(err).Msg("failed to create product")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create product"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

// Update handles PUT /api/v1/admin/products/:id
// @Summary Update a product
// @Description Applies a partial update. Omitted fields are left unchanged.
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param request body models.UpdateProductRequest true "Update request"
// @Success 200 {object} models.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/products/{id} [put]
func (h *ProductsHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req models.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.store.UpdateProduct(c.Request.Context(), id, req); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to update product")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update product"})
		return
	}

	product, err := h.store.GetProductByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load product"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// Delete handles DELETE /api/v1/admin/products/:id
// @Summary Delete a product
// @Description Permanently removes a product and its comments. The action and reason are recorded in the moderation log.
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param request body object true "Delete reason"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/products/{id} [delete]
func (h *ProductsHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req deleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	if err := h.store.DeleteProduct(c.Request.Context(), id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.logger.Error().Err(err).Msg("failed to delete product")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete product"})
		return
	}

	mod := moderator(c)
	if _, err := h.recorder.Record(c.Request.Context(), models.ModerationDeleteProduct, id.String(), "product", req.Reason, mod); err != nil {
		h.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to record product deletion")
	}
	if h.metrics != nil {
		h.metrics.RecordModerationAction(string(models.ModerationDeleteProduct))
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
