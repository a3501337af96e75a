package rbac

import (
	"net/http"

	"github.com/lgtm-migrator/dtel/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the caller has any of the provided roles.
// Rules:
// - admin bypasses all checks
// - automation is a hidden role, and will be denied unless explicitly allowed
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		// admin bypasses all
		if IsAdmin(role) {
			c.Next()
			return
		}

		// hidden roles are opt-in only
		if IsHiddenRole(role) {
			if _, ok := allowedSet[role]; !ok {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
