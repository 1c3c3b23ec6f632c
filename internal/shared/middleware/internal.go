package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"orderflow-backend/internal/shared/response"
)

// InternalServiceKeyHeader authenticates calls from sibling services
// (fulfillment updates, payment reconciliation triggers).
const InternalServiceKeyHeader = "X-Internal-Service-Key"

// InternalServiceMiddleware guards service-to-service endpoints.
func InternalServiceMiddleware(expectedKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(InternalServiceKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(expectedKey)) != 1 {
			response.Forbidden(c, "invalid service key")
			c.Abort()
			return
		}
		c.Next()
	}
}
