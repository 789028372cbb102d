// File: internal/middleware/logger.go
package middleware

import (
	"time"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// RequestIDHeader is the header name for request ID
	RequestIDHeader = "X-Request-ID"
	// RequestIDContextKey is the key for storing request ID in Gin context
	RequestIDContextKey = "requestID"

	healthPath = "/health"
)

// ZapLogger assigns each request an id, stores a request-scoped logger under
// common.LoggerKey and writes one access log line when the request finishes.
// Health checks are logged at debug level.
func ZapLogger(logger *zap.Logger, cfg *config.Config) gin.HandlerFunc {
	access := logger.Named("HTTP")
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Set(common.LoggerKey, logger.With(zap.String("request_id", requestID)))

		c.Next()

		status := c.Writer.Status()
		fields := []zapcore.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status_code", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		}
		if userID := c.GetString(common.UserIDKey); userID != "" {
			fields = append(fields, zap.String("userID", userID))
		}
		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			fields = append(fields, zap.NamedError("error", e.Err))
		}

		switch {
		case status >= 500:
			access.Error("Server error", fields...)
		case status >= 400 && cfg.IsProduction():
			access.Warn("Client error", fields...)
		case c.Request.URL.Path == healthPath:
			access.Debug("Health check", fields...)
		default:
			access.Info("Request handled", fields...)
		}
	}
}
