package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
)

// RateLimitRule allows Limit requests per Window for each caller.
type RateLimitRule struct {
	Window time.Duration
	Limit  uint
}

// RateLimit throttles per caller (user id, falling back to client IP).
func RateLimit(rule RateLimitRule) gin.HandlerFunc {
	if rule.Window <= 0 {
		rule.Window = time.Second
	}
	if rule.Limit == 0 {
		rule.Limit = 1
	}
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  rule.Window,
		Limit: rule.Limit,
	})
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: rateLimitExceeded,
		KeyFunc:      principalKey,
	})
}

func principalKey(c *gin.Context) string {
	if principal := strings.TrimSpace(UserIDFromContext(c)); principal != "" {
		return principal
	}
	return c.ClientIP()
}

func rateLimitExceeded(c *gin.Context, info ratelimit.Info) {
	retryAfter := time.Until(info.ResetTime)
	retryAfterMs := int(retryAfter / time.Millisecond)
	if retryAfterMs <= 0 {
		retryAfterMs = 1000
	}
	retryAfterSeconds := int(math.Ceil(float64(retryAfterMs) / 1000.0))
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": gin.H{
			"code":    "rate_limited",
			"message": "too many requests",
			"details": gin.H{"retryAfterMs": retryAfterMs},
		},
	})
}
