// Package middleware contains the Gin middleware of the ops HTTP server.
//
// This file adapts the shared per-key token bucket to HTTP, keyed by client
// IP. It is edge-level abuse control for the read-only API, not an
// authorization mechanism.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fallenrobot/fallenbot/internal/ratelimit"
)

// RateLimit rejects requests beyond the client's budget with 429.
// Probe paths (/health, /metrics) are never limited.
func RateLimit(lim *ratelimit.Keyed) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isProbe(c.Request.URL.Path) || lim.Allow("ip:"+c.ClientIP()) {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
