package middleware

import (
	"context"
	"log/slog"
	"time"

	"auctionhouse/internal/api/respond"
	"auctionhouse/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Limiter takes one token for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RateLimit throttles requests per client IP. When the limiter backend fails the
// request is let through.
func RateLimit(limiter Limiter, name string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ok, wait, err := limiter.Allow(c.Request.Context(), name+":"+c.ClientIP())
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable",
					slog.String("limiter", name),
					slog.String("error", err.Error()),
				)
			}
			c.Next()
			return
		}
		if !ok {
			metrics.RateLimitedTotal.WithLabelValues(name).Inc()
			respond.TooManyRequests(c, wait, "")
			return
		}
		c.Next()
	}
}
