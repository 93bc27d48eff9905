package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// SigningRateLimit caps signing requests per user per minute using Redis if
// available. This is the application's own guard, independent of the remote
// service's 429 handling inside the client.
func SigningRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		user := c.Params("userId")
		if user == "" {
			user = c.IP()
		}
		key := "rl:sign:" + user
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "signing rate limit exceeded, try again later")
		}
		return c.Next()
	}
}
