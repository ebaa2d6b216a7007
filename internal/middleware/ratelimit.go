package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/trananhvu/classpulse/internal/ratelimit"
	apperrors "github.com/trananhvu/classpulse/pkg/errors"
	"github.com/trananhvu/classpulse/pkg/response"
)

// RateLimit throttles HTTP requests per (clientIP, route) using the shared
// fixed-window limiter. Suitable for single-instance deployments.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		allowed, retryAfter := limiter.Allow(key)
		if !allowed {
			seconds := int64(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.FormatInt(seconds, 10))
			response.Error(c, apperrors.RateLimited(retryAfter.Milliseconds()))
			c.Abort()
			return
		}

		c.Next()
	}
}
