package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/musicatlas/api/pkg/response"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" {
			return c.Next() // Skip rate limiting if no user (auth middleware should catch this)
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, userID)
		ctx := context.Background()

		// Increment counter
		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// If Redis fails, allow the request
			return c.Next()
		}

		// Set expiration on first request
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// RecsJobLimit bounds background job creation per user.
func (rl *RateLimiter) RecsJobLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("recsjobs", maxPerHour, time.Hour)
}

// AlbumsLimit bounds the synchronous recommendation endpoints.
func (rl *RateLimiter) AlbumsLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("albums", maxPerMin, time.Minute)
}

// TasteLimit bounds taste profile builds, which may fan out to Spotify.
func (rl *RateLimiter) TasteLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("taste", maxPerMin, time.Minute)
}
