package router

import (
	"context"
	"fmt"

	"herdshare-backend/internal/application/allocation"
	"herdshare-backend/internal/application/assets"
	"herdshare-backend/internal/application/checkout"
	"herdshare-backend/internal/application/holdings"
	"herdshare-backend/internal/application/journal"
	"herdshare-backend/internal/application/offerings"
	"herdshare-backend/internal/application/tagpool"
	"herdshare-backend/internal/config"
	"herdshare-backend/internal/constants"
	"herdshare-backend/internal/infrastructure/database"
	"herdshare-backend/internal/infrastructure/events"
	"herdshare-backend/internal/infrastructure/locker"
	"herdshare-backend/internal/infrastructure/payments"
	assethandler "herdshare-backend/internal/interfaces/handlers/assets"
	healthhandler "herdshare-backend/internal/interfaces/handlers/health"
	holdhandler "herdshare-backend/internal/interfaces/handlers/holdings"
	offhandler "herdshare-backend/internal/interfaces/handlers/offerings"
	orderhandler "herdshare-backend/internal/interfaces/handlers/orders"
	payhandler "herdshare-backend/internal/interfaces/handlers/payments"
	taghandler "herdshare-backend/internal/interfaces/handlers/tagpool"
	"herdshare-backend/internal/middleware"
	"herdshare-backend/internal/obs"
	"herdshare-backend/internal/pkg/clock"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services is the wired application layer shared by handlers and background workers.
type Services struct {
	Assets    *assets.Service
	Offerings *offerings.Service
	Tags      *tagpool.Service
	Journal   *journal.Journal
	Holdings  *holdings.Ledger
	Engine    *allocation.Engine
	Checkout  *checkout.Service
	Sweeper   *allocation.Sweeper
}

// NewServices wires the allocation core. With Redis the offering lock and the event
// stream are shared across instances; without it both stay in-process.
func NewServices(db *gorm.DB, rdb *redis.Client, gw payments.Gateway, clk clock.Clock, cfg *config.Config) *Services {
	clk = clock.OrReal(clk)
	var (
		lk  locker.Locker    = locker.NewLocal()
		pub events.Publisher = events.Nop{}
	)
	if rdb != nil {
		lk = &locker.Redis{Client: rdb}
		pub = &events.RedisPublisher{Client: rdb, Stream: events.DefaultStream}
	}

	j := &journal.Journal{DB: db, Clock: clk}
	s := &Services{
		Assets:    &assets.Service{DB: db, Clock: clk},
		Offerings: &offerings.Service{DB: db, Clock: clk},
		Tags:      &tagpool.Service{DB: db, Clock: clk},
		Journal:   j,
		Holdings:  &holdings.Ledger{DB: db, Journal: j, Clock: clk},
	}
	s.Engine = &allocation.Engine{
		DB:             db,
		Clock:          clk,
		Locker:         lk,
		Tags:           s.Tags,
		Journal:        j,
		Holdings:       s.Holdings,
		Events:         pub,
		ReservationTTL: cfg.ReservationTTL,
	}
	s.Checkout = &checkout.Service{Engine: s.Engine, Offerings: s.Offerings, Gateway: gw}
	s.Sweeper = &allocation.Sweeper{
		Engine:    s.Engine,
		Offerings: s.Offerings,
		Interval:  cfg.SweepInterval,
	}
	return s
}

// Runtime is everything the entry points need after CreateApp.
type Runtime struct {
	App      *fiber.App
	DB       *gorm.DB
	Redis    *redis.Client
	Services *Services
}

// CreateApp opens the database and Redis from cfg and builds the Fiber app.
func CreateApp(cfg *config.Config) (*Runtime, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database url not configured for env %q", cfg.Env)
	}
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	var gw payments.Gateway
	if cfg.StripeSecretKey != "" {
		gw = &payments.StripeGateway{SecretKey: cfg.StripeSecretKey}
	}
	svc := NewServices(db, rdb, gw, clock.Real{}, cfg)
	return &Runtime{App: New(cfg, db, rdb, svc), DB: db, Redis: rdb, Services: svc}, nil
}

// New builds the Fiber app around already wired services. rdb may be nil.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svc *Services) *fiber.App {
	obs.Init()

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))
	app.Use(obs.Instrument())

	// Registered before the session and logging middleware so the raw body reaches the
	// signature check untouched.
	stripeWebhook := &payhandler.WebhookHandler{Checkout: svc.Checkout, WebhookSecret: cfg.StripeWebhookSecret}
	app.Post("/api/v1/stripe/webhook", stripeWebhook.HandleWebhook)

	app.Use(middleware.Session(rdb))
	if rdb != nil {
		app.Use(middleware.HealthMarker(rdb))
	}
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.AdminKey(cfg.AdminKeyHash))

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             db,
		Probes:         cfg.HealthProbes,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)
	app.Get("/metrics", obs.Handler())

	auth := middleware.RequireAuth()
	perm := middleware.AuthorizePermission

	oh := &offhandler.Handlers{Service: svc.Offerings, DefaultCurrency: cfg.PaymentCurrency}
	ah := &assethandler.Handlers{Service: svc.Assets}
	th := &taghandler.Handlers{Service: svc.Tags}
	hold := &holdhandler.Handlers{Ledger: svc.Holdings}
	ord := &orderhandler.Handlers{Checkout: svc.Checkout, Engine: svc.Engine, Journal: svc.Journal}

	v1 := app.Group("/api/v1")

	v1.Get("/assets", ah.List)
	v1.Get("/assets/:id", ah.Get)

	v1.Get("/offerings", oh.List)
	v1.Get("/offerings/:id", oh.Get)
	v1.Get("/offerings/:id/availability", oh.Availability)
	v1.Post("/offerings/:id/orders", auth, perm(constants.PlaceOrders), middleware.RateLimit(middleware.RateLimitConfig{
		PerSecond: cfg.OrderRatePerSecond,
		Burst:     cfg.OrderRateBurst,
	}), ord.Place)

	v1.Get("/orders/:order_number", auth, perm(constants.ViewOrders), ord.Get)
	v1.Get("/orders/:order_number/events", auth, perm(constants.ConfirmPayments), ord.Events)
	v1.Get("/payments/:payment_intent_id/events", auth, perm(constants.ConfirmPayments), ord.IntentEvents)
	v1.Post("/orders/:order_number/confirm", auth, perm(constants.ConfirmPayments), ord.Confirm)
	v1.Post("/orders/:order_number/release", auth, perm(constants.ReleaseOrders), ord.Release)

	v1.Get("/buyers/:id/orders", auth, perm(constants.ViewOrders), ord.ByBuyer)
	v1.Get("/buyers/:id/holdings", auth, perm(constants.ViewHoldings), hold.ByBuyer)

	admin := v1.Group("/admin", auth)
	admin.Post("/assets", perm(constants.ManageCatalog), ah.Create)
	admin.Patch("/assets/:id", perm(constants.ManageCatalog), ah.Update)
	admin.Post("/offerings", perm(constants.ManageCatalog), oh.Open)
	admin.Post("/offerings/:id/close", perm(constants.ManageCatalog), oh.Close)
	admin.Post("/tag-pool/seed", perm(constants.ManageTagPool), th.Seed)
	admin.Get("/tag-pool/:country_code/stats", perm(constants.ManageTagPool), th.Stats)
	admin.Get("/holdings/verify", perm(constants.AuditHoldings), hold.Verify)
	admin.Post("/holdings/rebuild", perm(constants.AuditHoldings), hold.Rebuild)

	return app
}
