package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
)

// RequestLogger logs incoming HTTP requests using slog
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		// Skip logging for health check to avoid noise
		if path == "/api/v1/health" {
			return
		}

		statusCode := c.Writer.Status()
		if raw != "" {
			path = path + "?" + raw
		}

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", statusCode),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
			slog.String("user_agent", c.Request.UserAgent()),
		}

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			attrs = append(attrs, slog.String("error", errorMessage))
		}

		if userID := GetUserID(c); userID != "" {
			attrs = append(attrs, slog.String("user_id", userID))
		}

		msg := "Incoming request"
		switch {
		case statusCode >= 500:
			logger.Log.Error(msg, attrs...)
		case statusCode >= 400:
			logger.Log.Warn(msg, attrs...)
		default:
			logger.Log.Info(msg, attrs...)
		}
	}
}
