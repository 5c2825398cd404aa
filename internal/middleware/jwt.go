package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mediavault/backend/internal/auth"
	"github.com/mediavault/backend/pkg/response"
)

const (
	// ContextAdminID is the key for the authenticated admin ID in gin context.
	ContextAdminID = "admin_id"
	// ContextAdminEmail is the key for the authenticated admin email in gin context.
	ContextAdminEmail = "admin_email"
)

// JWT returns a middleware that validates the bearer token and sets admin claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		authenticate(c, jwtService, strings.TrimSpace(parts[1]))
	}
}

// JWTQuery is JWT for clients that cannot set headers (browser WebSocket).
// The token is read from the given query parameter, falling back to the Authorization header.
func JWTQuery(jwtService *auth.JWTService, param string) gin.HandlerFunc {
	header := JWT(jwtService)
	return func(c *gin.Context) {
		token := c.Query(param)
		if token == "" {
			header(c)
			return
		}
		authenticate(c, jwtService, token)
	}
}

func authenticate(c *gin.Context, jwtService *auth.JWTService, token string) {
	claims, err := jwtService.Validate(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		c.Abort()
		return
	}
	c.Set(ContextAdminID, claims.AdminID)
	c.Set(ContextAdminEmail, claims.Email)
	c.Next()
}

// AdminID returns the authenticated admin ID, or 0 outside a JWT-guarded route.
func AdminID(c *gin.Context) int64 {
	v, _ := c.Get(ContextAdminID)
	id, _ := v.(int64)
	return id
}
