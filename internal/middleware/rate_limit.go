package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const defaultRatePerMinute = 10

// RateLimit allows maxPerMin requests per caller per minute, keyed by the
// authenticated user id when present and the client IP otherwise. Counters live in
// Redis; without Redis, or when Redis fails, requests pass.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = defaultRatePerMinute
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}

		caller := UserIDFrom(c)
		if caller == "" {
			caller = "ip:" + c.IP()
		}
		key := "rl:" + scope + ":" + caller

		ctx := c.UserContext()
		cnt, err := cache.Incr(ctx, key).Result()
		if err == nil && cnt == 1 {
			err = cache.Expire(ctx, key, time.Minute).Err()
		}
		if err != nil {
			if logger != nil {
				logger.Warn("rate limit check failed", slog.String("scope", scope), slog.Any("error", err))
			}
			return c.Next()
		}

		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
