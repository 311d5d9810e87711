package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ticketdrop/backend/internal/message"
	"github.com/ticketdrop/backend/internal/metrics"
	"github.com/ticketdrop/backend/internal/utility"
)

// KeyFunc derives the rate-limit bucket for a request
type KeyFunc func(c *gin.Context) string

// limiterScript counts requests in a fixed one-minute window. The key
// gets its TTL on first increment; PTTL feeds the Retry-After hint.
var limiterScript = redis.NewScript(`
	local key = KEYS[1]
	local window_ms = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window_ms)
	end

	local ttl = redis.call('PTTL', key)
	return { count, ttl }
`)

// RateLimit enforces a per-minute request budget on a Redis counter.
// It fails open: if the ephemeral store is unreachable the request is
// allowed, so store outages degrade rather than deny.
func RateLimit(redisClient *utility.RedisClient, scope string, perMinute int, keyFn KeyFunc) gin.HandlerFunc {
	window := time.Minute

	return func(c *gin.Context) {
		if redisClient == nil || perMinute <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rl:%s:%s", scope, keyFn(c))

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		vals, err := limiterScript.Run(ctx, redisClient.GetClient(), []string{key}, window.Milliseconds()).Int64Slice()
		if err != nil || len(vals) != 2 {
			log.Printf("[RateLimit] store unavailable for %s, failing open: %v", scope, err)
			c.Next()
			return
		}

		count, ttlMs := vals[0], vals[1]
		if count > int64(perMinute) {
			retryAfter := (ttlMs + 999) / 1000
			if retryAfter < 1 {
				retryAfter = 1
			}

			metrics.Default.RateLimitHits.Add(1)
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":             message.KindRateLimited,
				"retryAfterSeconds": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// ByUser buckets by the authenticated identity
func ByUser() KeyFunc {
	return func(c *gin.Context) string {
		return "user:" + UserID(c)
	}
}

// ByIPAndEvent buckets by client IP and the event path parameter
func ByIPAndEvent() KeyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP() + ":event:" + c.Param("id")
	}
}
