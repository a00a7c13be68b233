package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/config"
)

// RateLimit caps the request rate. Bridge clients all arrive from loopback
// under one IP, so a single shared limiter is effectively per-client; it
// keeps a stuck UI retry loop from hammering the daemon through us.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
