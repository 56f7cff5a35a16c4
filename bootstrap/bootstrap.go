package bootstrap

import (
	"herdshare-backend/internal/config"
	"herdshare-backend/internal/infrastructure/logging"
	"herdshare-backend/internal/interfaces/router"

	"github.com/gofiber/fiber/v2"
)

// New creates the Fiber app for Vercel serverless (api handler imports this package, not internal).
// No sweeper runs here; expired reservations are released by the long-running API or by
// POST /api/v1/orders/:order_number/release.
func New() (*fiber.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Env, cfg.LogLevel)
	rt, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return rt.App, nil
}
