package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// Health answers 200 when the store responds and 503 otherwise. It doubles as
// the keep-alive endpoint for hosts that idle silent processes.
func Health(store Pinger, backend string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if store != nil {
			if err := store.Ping(ctx); err != nil {
				fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "store unreachable")
				return
			}
		}
		ok(c, http.StatusOK, gin.H{"status": "ok", "backend": backend})
	}
}
