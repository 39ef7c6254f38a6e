package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/victoralfred/qrisk/internal/domain/ratelimit"
	"github.com/victoralfred/qrisk/internal/metrics"
)

// RedisRateLimit enforces the global budget and then the per-user (or per-IP
// when unauthenticated) budget. A failing limiter lets the request through.
func RedisRateLimit(limiter ratelimit.Limiter, config *ratelimit.Config, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		scope := "ip"
		key := fmt.Sprintf("ip:%s", c.ClientIP())
		policy := config.PerIP
		if userID, ok := c.Get("user_id"); ok {
			scope = "user"
			key = fmt.Sprintf("user:%v", userID)
			policy = config.PerUser
		}

		globalResult, err := limiter.Check(ctx, "global", config.Global.Limit, config.Global.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable, admitting request", zap.Error(err))
			c.Next()
			return
		}
		if !globalResult.Allowed {
			metrics.RateLimited.WithLabelValues("global").Inc()
			setRateLimitHeaders(c, globalResult)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":        "GLOBAL_RATE_LIMIT_EXCEEDED",
					"message":     "Global rate limit exceeded",
					"retry_after": int(globalResult.RetryAfter.Seconds()),
				},
			})
			return
		}

		result, err := limiter.Check(ctx, key, policy.Limit, policy.Window)
		if err != nil {
			logger.Warn("rate limiter unavailable, admitting request",
				zap.String("scope", scope),
				zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			metrics.RateLimited.WithLabelValues(scope).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":        "RATE_LIMIT_EXCEEDED",
					"message":     "Rate limit exceeded",
					"limit":       result.Limit,
					"remaining":   result.Remaining,
					"reset_at":    result.ResetTime.Unix(),
					"retry_after": int(result.RetryAfter.Seconds()),
				},
			})
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

	if result.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
	}
}
