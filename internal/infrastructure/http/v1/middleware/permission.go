package middleware

import (
	"github.com/gin-gonic/gin"

	"tillsync/internal/core/security"
)

// RequirePermission aborts unless the session role grants p.
func RequirePermission(p security.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := security.Require(c.Request.Context(), p); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
