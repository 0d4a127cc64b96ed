package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"cvix/internal/api/respond"
	"cvix/internal/errcode"
	"cvix/internal/metrics"
)

const rateLimitPrefix = "cvix:ratelimit:"

// RateCounter is the subset of the redis client the limiter needs.
type RateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client RateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// RateLimit caps requests per caller in fixed windows. It fails open when Redis is unavailable.
func RateLimit(client RateCounter, limit int, window time.Duration) gin.HandlerFunc {
	return rateLimit(client, limit, window, time.Now)
}

func rateLimit(client RateCounter, limit int, window time.Duration, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 || window <= 0 {
			c.Next()
			return
		}

		t := now()
		bucket := t.UnixNano() / int64(window)
		key := fmt.Sprintf("%s%s:%d", rateLimitPrefix, callerKey(CallerID(c)), bucket)

		count, err := incrWithTTL(c.Request.Context(), client, key, window)
		if err != nil {
			LoggerFromContext(c).Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			reset := time.Unix(0, (bucket+1)*int64(window))
			retry := int(reset.Sub(t).Seconds() + 0.999)
			if retry < 1 {
				retry = 1
			}
			metrics.RateLimited()
			c.Header("Retry-After", strconv.Itoa(retry))
			respond.Abort(c, http.StatusTooManyRequests, errcode.RateLimited, respond.MsgRateLimited, retry)
			return
		}
		c.Next()
	}
}

// callerKey keeps raw caller ids out of redis.
func callerKey(callerID string) string {
	sum := sha256.Sum256([]byte(callerID))
	return hex.EncodeToString(sum[:12])
}
