package httpapi

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware returns a Gin middleware validating bearer tokens
// against the configured token. If token is empty, all requests are
// allowed (development mode) — adapted from the teacher's
// internal/api/auth.go, which reads API_AUTH_TOKEN itself; here the
// token is passed in explicitly so the caller (cmd/server) owns env
// loading in one place.
func AuthMiddleware(token string, releaseMode bool) gin.HandlerFunc {
	if token == "" && releaseMode {
		log.Println("[httpapi] WARNING: no auth token configured in release mode; protected endpoints are public")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid Authorization header format"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
