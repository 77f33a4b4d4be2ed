// README: Header-based identity. Session issuance lives outside this service;
// the gateway in front of it forwards the authenticated user in X-User-ID and
// X-User-Role.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"naqlo/internal/types"
)

const (
	ContextUserID = "userID"
	ContextRole   = "userRole"
)

// Identity extracts the forwarded identity headers. Requests without them are
// rejected; a malformed role is rejected rather than defaulted.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		role := types.Role(c.GetHeader("X-User-Role"))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-User-ID"})
			return
		}
		switch role {
		case types.RoleCustomer, types.RoleDriver, types.RoleAdmin:
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-Role"})
			return
		}
		c.Set(ContextUserID, types.ID(userID))
		c.Set(ContextRole, role)
		c.Next()
	}
}

// RequireRole gates a route group to one role.
func RequireRole(role types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if got, ok := c.Get(ContextRole); !ok || got.(types.Role) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
