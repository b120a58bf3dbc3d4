package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RateLimiterConfig struct {
	Name              string        // Key namespace, so limits on different routes do not share a budget
	RequestsPerWindow int           // Number of requests allowed
	Window            time.Duration // Time window
	BlockDuration     time.Duration // How long to block after exceeding limit
}

// Sliding window over a sorted set of request timestamps.
const rateLimitScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local expiry = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local currentCount = redis.call('ZCARD', key)
redis.call('ZADD', key, now, ARGV[1])
redis.call('EXPIRE', key, expiry)

local remaining = math.max(limit - currentCount - 1, 0)
local allowed = currentCount < limit

return {allowed and 1 or 0, remaining}
`

const checkBlockScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
    return {0, 0}
end
return {1, redis.call('TTL', KEYS[1])}
`

// RateLimiterMiddleware limits requests per logged-in user, or per client IP
// before login. Redis failures let the request through.
func RateLimiterMiddleware(redisClient *redis.Client, logger *logger.Logger, config RateLimiterConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		subject := "ip:" + c.ClientIP()
		if user, ok := GetUserFromContext(c); ok {
			subject = "user:" + user.ID
		}

		blockKey := fmt.Sprintf("ratelimit:%s:block:%s", config.Name, subject)
		blockResult, err := redisClient.Eval(ctx, checkBlockScript, []string{blockKey}).Result()
		if err != nil {
			logger.Error("failed to check if client is blocked", zap.Error(err), zap.String("subject", subject))
			c.Next()
			return
		}

		blockInfo := blockResult.([]any)
		if blockInfo[0].(int64) == 1 {
			ttl := time.Duration(blockInfo[1].(int64)) * time.Second
			reject(c, config, ttl, "Too many requests. You have been temporarily blocked.")
			return
		}

		allowed, remaining, err := checkRateLimitAtomic(ctx, redisClient, config, subject)
		if err != nil {
			logger.Error("failed to check rate limit", zap.Error(err), zap.String("subject", subject))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.Window).Unix(), 10))

		if !allowed {
			if err := redisClient.Set(ctx, blockKey, "1", config.BlockDuration).Err(); err != nil {
				logger.Error("failed to block client", zap.Error(err), zap.String("subject", subject))
			}

			logger.Warn("rate limit exceeded",
				zap.String("subject", subject),
				zap.String("limiter", config.Name),
				zap.String("path", c.Request.URL.Path),
			)

			reject(c, config, config.BlockDuration,
				fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %v.", config.RequestsPerWindow, config.Window))
			return
		}

		c.Next()
	}
}

func reject(c *gin.Context, config RateLimiterConfig, retryAfter time.Duration, message string) {
	seconds := int(retryAfter.Seconds())

	c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "rate_limit_exceeded",
		"message":     message,
		"retry_after": seconds,
	})
}

func checkRateLimitAtomic(ctx context.Context, client *redis.Client, config RateLimiterConfig, subject string) (bool, int, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", config.Name, subject)
	now := time.Now()

	result, err := client.Eval(ctx, rateLimitScript,
		[]string{key},
		now.UnixNano(),
		config.Window.Nanoseconds(),
		config.RequestsPerWindow,
		int(config.Window.Seconds())+60, // expiry buffer
	).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	values := result.([]any)
	return values[0].(int64) == 1, int(values[1].(int64)), nil
}
