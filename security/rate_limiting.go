package security

import (
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter protects the queue and booking endpoints from bots and
// hammering clients. The window counter lives in Redis so the limit holds
// across multiple server processes.
type RateLimiter struct {
	redis     *redis.Client
	perMinute int64
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{
		redis:     redisClient,
		perMinute: int64(perMinute),
	}
}

// Middleware enforces a fixed per-minute request window keyed by user id
// (when authenticated) or client IP.
func (r *RateLimiter) Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		userAgent := e.Request.Header.Get("User-Agent")
		if isSuspiciousUserAgent(userAgent) {
			return apis.NewForbiddenError("Access denied", nil)
		}

		identifier := e.RealIP()
		if e.Auth != nil {
			identifier = fmt.Sprintf("user:%s", e.Auth.Id)
		}

		ctx := e.Request.Context()
		key := fmt.Sprintf("ratelimit:%s", identifier)

		count, err := r.redis.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				r.redis.Expire(ctx, key, time.Minute)
			}
			if count > r.perMinute {
				return e.JSON(429, map[string]string{
					"error": "Rate limit exceeded. Please try again later.",
				})
			}
		}

		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
