package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClientIDHeader is the header carrying the billing client scope. Every
// data-bearing route is scoped to one client.
const ClientIDHeader = "X-Client-ID"

// ClientIDContextKey is the gin context key holding the parsed client ID
const ClientIDContextKey = "client_id"

var clientIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ClientScope extracts and validates the client ID header, rejecting
// requests without a well-formed one. Handlers downstream read the
// parsed UUID from the gin context.
func ClientScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ClientIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "Missing " + ClientIDHeader + " header",
				},
			})
			return
		}
		if !clientIDRegex.MatchString(raw) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "Malformed " + ClientIDHeader + " header",
				},
			})
			return
		}

		clientID, err := uuid.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "Malformed " + ClientIDHeader + " header",
				},
			})
			return
		}

		c.Set(ClientIDContextKey, clientID)
		c.Next()
	}
}

// GetClientID returns the client ID set by ClientScope, or uuid.Nil when
// the middleware did not run
func GetClientID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ClientIDContextKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}
