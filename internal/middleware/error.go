// File: internal/middleware/error.go
package middleware

import (
	"net/http"

	"starterkit_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders errors attached with c.Error and gives unmatched
// routes a JSON body.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if ginErr := c.Errors.Last(); ginErr != nil {
			if c.Writer.Written() {
				return
			}
			apiErr, ok := common.IsAPIError(ginErr.Err)
			if !ok {
				logger.Error("Unhandled application error",
					zap.Error(ginErr.Err),
					zap.String("path", c.Request.URL.Path),
					zap.Any("meta", ginErr.Meta),
					zap.String("request_id", c.GetString(RequestIDContextKey)),
				)
				apiErr = common.ErrInternalServer.WithDetails("An unexpected error occurred.")
				if gin.Mode() == gin.DebugMode {
					apiErr = common.ErrInternalServer.WithDetails(ginErr.Err.Error())
				}
			}
			c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
			return
		}

		// gin has set the status of an unmatched route but written no body yet.
		if c.Writer.Written() {
			return
		}
		switch c.Writer.Status() {
		case http.StatusNotFound:
			c.AbortWithStatusJSON(http.StatusNotFound, common.ErrNotFound.WithDetails("The requested endpoint does not exist."))
		case http.StatusMethodNotAllowed:
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, common.ErrMethodNotAllowed)
		}
	}
}
