package middleware

import (
	"fmt"
	"math"

	"feedback_server/pkg/apperr"
	"feedback_server/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimit refuses requests once the client IP exhausts its window.
func RateLimit(limiter ratelimit.Limiter, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, wait := limiter.Allow(c.UserContext(), scope+":"+c.IP())
		if ok {
			return c.Next()
		}

		retryAfter := int(math.Ceil(wait.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		return apperr.RateLimited(retryAfter)
	}
}

// SecurityHeaders adds the response headers every JSON API should send.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		return c.Next()
	}
}
