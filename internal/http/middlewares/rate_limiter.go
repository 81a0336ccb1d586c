package middlewares

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces a fixed window per derived key, backed by redis so
// the window is shared across instances. Used on /login to slow credential
// stuffing.
type RateLimiter struct {
	rdb    *redis.Client
	window time.Duration
	limit  int
	prefix string
}

func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

// Middleware returns a gin.HandlerFunc that enforces the limit for a key
// derived per request. A redis outage fails open: availability of login
// beats strictness of the limiter.
func (rl *RateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		ctx := c.Request.Context()
		redisKey := rl.prefix + key

		count, err := rl.rdb.Incr(ctx, redisKey).Result()

		if err != nil {
			c.Next()
			return
		}

		if count == 1 {
			rl.rdb.Expire(ctx, redisKey, rl.window)
		}

		if count > int64(rl.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "Too many requests, slow down.",
				},
			})
			return
		}

		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	// behind a proxy the first X-Forwarded-For hop is the caller
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)

	if err != nil {
		return c.Request.RemoteAddr
	}

	return host
}
