package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"aimlib/internal/auth"
)

func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if ac := auth.FromGin(c); ac != nil {
			attrs = append(attrs, "user", ac.UserID)
		}
		if status >= 500 {
			logger.Warn("请求", attrs...)
			return
		}
		logger.Info("请求", attrs...)
	}
}
