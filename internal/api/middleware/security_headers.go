package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// cspAPI is a strict Content-Security-Policy for API routes that return JSON.
const cspAPI = "default-src 'none'; frame-ancestors 'none'"

// cspDocs is the Content-Security-Policy for HTML-serving routes (Swagger
// docs). Swagger UI requires inline scripts and styles.
const cspDocs = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'; frame-ancestors 'none'"

// SecurityHeaders returns a middleware that sets security-related HTTP response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// HSTS only with TLS
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		if isAPIRoute(c.Request.URL.Path) {
			c.Header("Content-Security-Policy", cspAPI)
		} else {
			c.Header("Content-Security-Policy", cspDocs)
		}

		c.Next()
	}
}

// isAPIRoute returns true for paths that only serve JSON responses.
func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}
