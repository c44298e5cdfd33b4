package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dtroode/kurisync/internal/logger"
)

// Logging logs every request with its status and duration.
type Logging struct {
	logger *logger.Logger
}

func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) Handle(c *gin.Context) {
	start := time.Now()

	c.Next()

	status := c.Writer.Status()
	args := []any{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if len(c.Errors) > 0 {
		args = append(args, "errors", c.Errors.String())
	}

	switch {
	case status >= 500:
		l.logger.Error("http request failed", args...)
	case status >= 400:
		l.logger.Warn("http request rejected", args...)
	default:
		l.logger.Info("http request completed", args...)
	}
}
