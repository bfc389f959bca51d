package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/timmy/scribe/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// quietPaths are polled constantly and only logged at debug level.
var quietPaths = []string{"/health", "/metrics", "/ws"}

// LoggerMiddleware returns a Gin middleware that injects a request-scoped logger.
// Parameters:
//   - log: base logger to enrich with request fields.
//
// Returns:
//   - gin.HandlerFunc: middleware handler.
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Reuse the caller's request ID when it sent one
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.New().String()
		}

		ctx := log.WithContext(c.Request.Context())
		ctx = logger.SetRequestID(ctx, requestID)
		ctx = logger.SetComponent(ctx, "api")
		c.Request = c.Request.WithContext(ctx)
		c.Set("logger", logger.FromContext(ctx))
		c.Header(requestIDHeader, requestID)

		c.Next()

		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}

		entry := logger.With(logger.Fields{
			logger.FieldStatus:     c.Writer.Status(),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
			logger.FieldSize:       c.Writer.Size(),
		})
		if isQuiet(path) {
			entry.Debug(ctx, "Request completed: method=%s, path=%s", c.Request.Method, fullPath)
			return
		}
		if len(c.Errors) > 0 {
			entry.Warn(ctx, "Request completed: method=%s, path=%s, errors=%s", c.Request.Method, fullPath, c.Errors.String())
			return
		}
		entry.Info(ctx, "Request completed: method=%s, path=%s, client_ip=%s", c.Request.Method, fullPath, c.ClientIP())
	}
}

func isQuiet(path string) bool {
	for _, p := range quietPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// GetLogger extracts logger from Gin context or request context.
func GetLogger(c *gin.Context) *logger.Logger {
	if l, exists := c.Get("logger"); exists {
		if log, ok := l.(*logger.Logger); ok {
			return log
		}
	}
	return logger.FromContext(c.Request.Context())
}
