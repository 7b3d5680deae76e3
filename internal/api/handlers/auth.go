// Package handlers implements the HTTP API for KeyGate.
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
	"github.com/keygate-dev/keygate/internal/models"
)

// IdentityService resolves and inspects storefront identities.
type IdentityService interface {
	ResolveOrCreateUser(ctx context.Context, username string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	MarkWarningsRead(ctx context.Context, id uuid.UUID) error
}

// PresenceService tracks online state via heartbeats.
type PresenceService interface {
	Heartbeat(ctx context.Context, userID uuid.UUID) error
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// AuthHandler handles identity resolution, sessions, and self-service routes.
type AuthHandler struct {
	identity          IdentityService
	presence          PresenceService
	sessions          *auth.SessionStore
	adminPasswordHash string
	logger            zerolog.Logger
}

// NewAuthHandler creates a new auth handler. presence may be nil when
// presence tracking is not wired.
func NewAuthHandler(identity IdentityService, presence PresenceService, sessions *auth.SessionStore, adminPasswordHash string, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		identity:          identity,
		presence:          presence,
		sessions:          sessions,
		adminPasswordHash: adminPasswordHash,
		logger:            logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterRoutes registers auth routes. public receives routes that work
// without a session; session receives routes behind AuthMiddleware.
func (h *AuthHandler) RegisterRoutes(public, session *gin.RouterGroup) {
	public.POST("/auth/resolve", h.Resolve)

	session.POST("/auth/logout", h.Logout)
	session.POST("/auth/elevate", h.Elevate)
	session.GET("/me", h.Me)
	session.POST("/me/warnings/read", h.MarkWarningsRead)
	session.POST("/me/heartbeat", h.Heartbeat)
}

// Resolve handles POST /api/v1/auth/resolve
// @Summary Resolve or create a storefront identity
// @Description Returns the user with the given username, creating it if absent. An empty username yields a generated one. The resolved identity is stored in the session cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ResolveUserRequest true "Resolve request"
// @Success 200 {object} models.User
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /auth/resolve [post]
func (h *AuthHandler) Resolve(c *gin.Context) {
	var req models.ResolveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.identity.ResolveOrCreateUser(c.Request.Context(), req.Username)
	if err != nil {
		h.logger.Error().Err(err).Str("username", req.Username).Msg("failed to resolve user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
		return
	}

	// Banned identities can be resolved but not used
	if user.IsCurrentlyBanned(time.Now()) {
		resp := gin.H{"error": "account banned"}
		if user.BanReason != nil {
			resp["reason"] = *user.BanReason
		}
		if user.BanExpiresAt != nil {
			resp["expires_at"] = user.BanExpiresAt
		}
		c.JSON(http.StatusForbidden, resp)
		return
	}

	sessionUser := &auth.SessionUser{
		ID:         user.ID,
		Username:   user.Username,
		Role:       user.Role,
		ResolvedAt: time.Now(),
	}
	if err := h.sessions.SetUser(c.Request, c.Writer, sessionUser); err != nil {
		h.logger.Error().Err(err).Msg("failed to save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// Logout handles POST /api/v1/auth/logout
// @Summary Clear the session
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.ClearUser(c.Request, c.Writer); err != nil {
		h.logger.Warn().Err(err).Msg("failed to clear session")
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// Elevate handles POST /api/v1/auth/elevate
// @Summary Elevate the session to the admin role
// @Description Verifies the operator password and grants the admin role for the current session.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ElevateRequest true "Elevate request"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/elevate [post]
func (h *AuthHandler) Elevate(c *gin.Context) {
	sessionUser := middleware.RequireUser(c)
	if sessionUser == nil {
		return
	}

	var req models.ElevateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if err := auth.CheckAdminPassword(h.adminPasswordHash, req.Password); err != nil {
		if errors.Is(err, auth.ErrBadPassword) {
			h.logger.Warn().
				Str("user_id", sessionUser.ID.String()).
				Msg("failed admin elevation attempt")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "elevation unavailable"})
		return
	}

	sessionUser.Role = models.UserRoleAdmin
	if err := h.sessions.SetUser(c.Request, c.Writer, sessionUser); err != nil {
		h.logger.Error().Err(err).Msg("failed to save elevated session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}

	h.logger.Info().
		Str("user_id", sessionUser.ID.String()).
		Str("username", sessionUser.Username).
		Msg("session elevated to admin")
	c.JSON(http.StatusOK, gin.H{"role": string(models.UserRoleAdmin)})
}

// Me handles GET /api/v1/me
// @Summary Get the current user
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} map[string]string
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	sessionUser := middleware.RequireUser(c)
	if sessionUser == nil {
		return
	}

	user, err := h.identity.GetUser(c.Request.Context(), sessionUser.ID)
	if err != nil {
		if errors.Is(err, access.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
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
		"session_role":     sessionUser.Role,
		"is_online":        online,
		"unread_warnings":  user.UnreadWarnings(),
		"currently_banned": user.IsCurrentlyBanned(time.Now()),
	})
}

// MarkWarningsRead handles POST /api/v1/me/warnings/read
// @Summary Acknowledge all warnings
// @Description Marks every warning on the current user as read. Idempotent.
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /me/warnings/read [post]
func (h *AuthHandler) MarkWarningsRead(c *gin.Context) {
	sessionUser := middleware.RequireUser(c)
	if sessionUser == nil {
		return
	}

	if err := h.identity.MarkWarningsRead(c.Request.Context(), sessionUser.ID); err != nil {
		if errors.Is(err, access.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acknowledge warnings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}

// Heartbeat handles POST /api/v1/me/heartbeat
// @Summary Mark the current user online
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /me/heartbeat [post]
func (h *AuthHandler) Heartbeat(c *gin.Context) {
	sessionUser := middleware.RequireUser(c)
	if sessionUser == nil {
		return
	}

	if h.presence == nil {
		c.JSON(http.StatusOK, gin.H{"status": "presence disabled"})
		return
	}

	if err := h.presence.Heartbeat(c.Request.Context(), sessionUser.ID); err != nil {
		h.logger.Error().Err(err).Str("user_id", sessionUser.ID.String()).Msg("heartbeat failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "heartbeat failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "online"})
}
