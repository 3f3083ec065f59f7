package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxUserID = "uid"

// JWTMiddleware guards the REST surface when a secret is configured.
// With an empty secret the guard is disabled and requests pass through
// anonymously, keeping the plain wire contract intact.
func JWTMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(h, "Bearer ")

		claims, err := ParseToken(secret, tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated caller's id, or "" when the guard is
// disabled or the request was anonymous.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
