package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RouteLogger writes one line per request with status, duration, trace ID and the session
// user. Probe and scrape paths are logged at debug level.
func RouteLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := GetTraceID(c)
		if traceID == "" {
			traceID = "no-trace-id"
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = log.Error()
		case strings.HasPrefix(c.Path(), "/health") || c.Path() == "/metrics":
			ev = log.Debug()
		case status >= 400:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		if u, ok := CurrentUser(c); ok {
			ev = ev.Str("user_id", u.UserID)
		} else if IsAdminKey(c) {
			ev = ev.Bool("admin_key", true)
		}
		ev.Str("trace_id", traceID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Int64("ms", time.Since(start).Milliseconds()).
			Msg("request")
		return err
	}
}
