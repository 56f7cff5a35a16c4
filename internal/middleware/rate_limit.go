package middleware

import (
	"sync"
	"time"

	"herdshare-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimitConfig limits requests per caller. Callers are keyed by session user id,
// falling back to the client IP.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	// IdleTTL drops limiters for callers not seen for this long.
	IdleTTL time.Duration
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns a token-bucket limiter middleware. A non-positive rate disables it.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if cfg.PerSecond <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}

	var (
		mu        sync.Mutex
		limiters  = make(map[string]*limiterEntry)
		lastSweep = time.Now()
	)
	get := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if now.Sub(lastSweep) > cfg.IdleTTL {
			for k, e := range limiters {
				if now.Sub(e.lastSeen) > cfg.IdleTTL {
					delete(limiters, k)
				}
			}
			lastSweep = now
		}
		e, ok := limiters[key]
		if !ok {
			e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst)}
			limiters[key] = e
		}
		e.lastSeen = now
		return e.lim
	}

	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if u, ok := CurrentUser(c); ok {
			key = "user:" + u.UserID
		}
		if !get(key).Allow() {
			c.Set(fiber.HeaderRetryAfter, "1")
			return response.Error(c, "Too many requests", fiber.StatusTooManyRequests, nil)
		}
		return c.Next()
	}
}
