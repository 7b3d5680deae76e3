// Package middleware provides HTTP middleware for the KeyGate API.
package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/models"
)

// UserStore is the interface for loading users during request handling.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ContextKey is the type for context keys used by this package.
type ContextKey string

const (
	// UserContextKey is the context key for the session user.
	UserContextKey ContextKey = "user"
	// DBUserContextKey is the context key for the database-loaded user.
	DBUserContextKey ContextKey = "db_user"
)

// AuthMiddleware returns a Gin middleware that requires a resolved session.
func AuthMiddleware(sessions *auth.SessionStore, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		sessionUser, err := sessions.GetUser(c.Request)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("unauthenticated request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(string(UserContextKey), sessionUser)

		log.Debug().
			Str("user_id", sessionUser.ID.String()).
			Str("path", c.Request.URL.Path).
			Msg("authenticated request")

		c.Next()
	}
}

// BanGuardMiddleware returns a Gin middleware that loads the session user
// from the database and rejects requests from banned users. The stored flag
// is never trusted alone; expiry is evaluated against the current time. A
// stale session whose user no longer exists is cleared. Must run after
// AuthMiddleware.
func BanGuardMiddleware(store UserStore, sessions *auth.SessionStore, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "ban_guard").Logger()

	return func(c *gin.Context) {
		sessionUser := GetUser(c)
		if sessionUser == nil {
			c.Next()
			return
		}

		user, err := store.GetUserByID(c.Request.Context(), sessionUser.ID)
		if err != nil {
			log.Warn().
				Str("user_id", sessionUser.ID.String()).
				Msg("session user not found in database, clearing stale session")
			if clearErr := sessions.ClearUser(c.Request, c.Writer); clearErr != nil {
				log.Warn().Err(clearErr).Msg("failed to clear stale session")
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		if user.IsCurrentlyBanned(time.Now()) {
			resp := gin.H{"error": "account banned"}
			if user.BanReason != nil {
				resp["reason"] = *user.BanReason
			}
			if user.BanExpiresAt != nil {
				resp["expires_at"] = user.BanExpiresAt
			}
			c.AbortWithStatusJSON(http.StatusForbidden, resp)
			return
		}

		c.Set(string(DBUserContextKey), user)
		c.Next()
	}
}

// RequirePermission returns a Gin middleware that enforces a role
// permission using the session role. Must run after AuthMiddleware.
func RequirePermission(perm auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if err := auth.RequireRolePermission(user.Role, perm); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}

// GetUser retrieves the session user from the Gin context.
// Returns nil if no user is authenticated.
func GetUser(c *gin.Context) *auth.SessionUser {
	user, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil
	}
	sessionUser, ok := user.(*auth.SessionUser)
	if !ok {
		return nil
	}
	return sessionUser
}

// GetDBUser retrieves the database-loaded user from the Gin context.
// Returns nil when BanGuardMiddleware did not run.
func GetDBUser(c *gin.Context) *models.User {
	user, exists := c.Get(string(DBUserContextKey))
	if !exists {
		return nil
	}
	dbUser, ok := user.(*models.User)
	if !ok {
		return nil
	}
	return dbUser
}

// RequireUser retrieves the session user or aborts with 401.
func RequireUser(c *gin.Context) *auth.SessionUser {
	user := GetUser(c)
	if user == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil
	}
	return user
}
