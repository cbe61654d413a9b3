package queryapi

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware returns a Gin middleware validating bearer tokens
// against ADMIN_AUTH_TOKEN. Federation add/remove are the only routes
// this guards; read endpoints stay public. If the token is unset, admin
// routes are left open — acceptable for local development, never for a
// publicly reachable deployment.
func AdminAuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("ADMIN_AUTH_TOKEN")
	if token == "" {
		log.Println("[queryapi] ADMIN_AUTH_TOKEN is not set; admin endpoints are unauthenticated")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed Authorization header"})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
