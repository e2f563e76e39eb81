package middleware

import (
	"fmt"
	"math"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careview/backend/internal/cache"
	"github.com/careview/backend/pkg/errors"
	"github.com/careview/backend/pkg/metrics"
	"github.com/careview/backend/pkg/response"
)

const (
	rateLimitUserPrefix = "rate_limit:user:"
	rateLimitIPPrefix   = "rate_limit:ip:"
)

// RateLimit throttles requests within a fixed window. The counter is keyed by
// the authenticated user when an identity is present, otherwise by client IP,
// and carries a TTL equal to the window so it self-resets. Counter failures
// let the request through.
func RateLimit(c *cache.Cache, maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 {
		maxRequests = 100
	}
	if window <= 0 {
		window = time.Minute
	}

	return func(ctx *gin.Context) {
		key := rateLimitIPPrefix + ctx.ClientIP()
		if identity, ok := IdentityFrom(ctx); ok {
			key = rateLimitUserPrefix + identity.User.UserID
		}

		count, remaining, ok := c.IncrementWithTTL(ctx.Request.Context(), key, window)
		if !ok {
			// Availability first: a broken counter never locks users out.
			ctx.Next()
			return
		}
		if remaining <= 0 {
			remaining = window
		}

		left := int64(maxRequests) - count
		if left < 0 {
			left = 0
		}
		reset := time.Now().Add(remaining)

		ctx.Header("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		ctx.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", left))
		ctx.Header("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))

		if count > int64(maxRequests) {
			retryAfter := int(math.Ceil(remaining.Seconds()))
			ctx.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			metrics.RateLimited.Inc()
			response.ErrorWith(ctx, errors.ErrRateLimit, map[string]interface{}{
				"retryAfter": retryAfter,
			})
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
