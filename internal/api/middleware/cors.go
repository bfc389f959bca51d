package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/scribe/internal/config"
)

// allowedHeaders includes "source", which upload clients use to tag recordings.
const allowedHeaders = "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID, Source"

// CORS returns a middleware that handles Cross-Origin Resource Sharing
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		var allowedOrigin string
		if cfg.AllowAllOrigins {
			allowedOrigin = "*"
			// "*" cannot be combined with credentials
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "false")
		} else {
			if !IsOriginAllowed(origin, cfg) && len(cfg.AllowedOrigins) > 0 {
				c.Next()
				return
			}
			allowedOrigin = origin
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// IsOriginAllowed checks if an origin is allowed based on the configuration
func IsOriginAllowed(origin string, cfg config.CORSConfig) bool {
	if cfg.AllowAllOrigins {
		return true
	}

	for _, allowedOrigin := range cfg.AllowedOrigins {
		if allowedOrigin == "*" || strings.EqualFold(origin, allowedOrigin) {
			return true
		}
	}

	return false
}
