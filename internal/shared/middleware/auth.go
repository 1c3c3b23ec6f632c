package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"orderflow-backend/internal/shared/response"
	"orderflow-backend/pkg/jwt"
)

// Context keys set by the auth middlewares.
const (
	ContextKeyUserID     = "user_id"
	ContextKeyUserEmail  = "user_email"
	ContextKeyRole       = "role"
	ContextKeyGuestToken = "guest_token"
	ContextKeyIsAuth     = "is_authenticated"
)

// GuestTokenHeader carries the anonymous cart owner token.
const GuestTokenHeader = "X-Guest-Token"

// AuthMiddleware requires a valid access token.
// Sets user_id, user_email and role in the gin context.
func AuthMiddleware(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or malformed authorization header")
			c.Abort()
			return
		}

		claims, err := manager.ValidateAccessToken(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "invalid user id in token")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyUserEmail, claims.Email)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyIsAuth, true)

		c.Next()
	}
}

// OptionalAuthMiddleware resolves the request owner without rejecting
// anonymous callers. An invalid token degrades to anonymous instead of 401
// so that guest carts keep working with a stale Authorization header.
func OptionalAuthMiddleware(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeyIsAuth, false)

		if guest := c.GetHeader(GuestTokenHeader); guest != "" {
			if _, err := uuid.Parse(guest); err == nil {
				c.Set(ContextKeyGuestToken, guest)
			}
		}

		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := manager.ValidateAccessToken(token)
		if err != nil {
			c.Next()
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyUserEmail, claims.Email)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyIsAuth, true)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// GetUserID retrieves the authenticated user ID from context.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetGuestToken retrieves the guest token from context.
func GetGuestToken(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyGuestToken)
	if !exists {
		return "", false
	}
	token, ok := v.(string)
	return token, ok && token != ""
}

// IsAuthenticated reports whether the request carries a valid user token.
func IsAuthenticated(c *gin.Context) bool {
	v, exists := c.Get(ContextKeyIsAuth)
	if !exists {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}
