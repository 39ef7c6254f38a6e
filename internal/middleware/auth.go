package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TokenService validates bearer tokens for the auth middleware
type TokenService interface {
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the JWT claims the API cares about
type TokenClaims struct {
	UserID string
	Roles  []string
}

// Auth middleware rejects requests without a valid bearer token.
// The resolved user id is stored as "user_id" for audit tagging.
func Auth(tokenService TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "AUTH_MISSING_TOKEN", "Authorization header is missing")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abortUnauthorized(c, "AUTH_INVALID_FORMAT", "Invalid authorization format. Use 'Bearer <token>'")
			return
		}

		claims, err := tokenService.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "AUTH_INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("roles", claims.Roles)
		c.Set("authenticated", true)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// RequestID middleware adds request ID to context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}
