package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tillsync/internal/core/apperror"
	"tillsync/pkg/logger"
)

// ErrorHandler turns errors registered with c.Error into {code, message, details}.
// Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// The handler (or an SSE stream) already answered.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				log := logger.FromContext(c.Request.Context())
				if appErr.HTTPStatus >= http.StatusInternalServerError {
					log.Errorw("request failed", "code", appErr.Code, "cause", appErr.Err)
				} else {
					log.Debugw("request rejected", "code", appErr.Code, "cause", appErr.Err)
				}
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{
				"request_id": c.GetString("request_id"),
			},
		})
	}
}
