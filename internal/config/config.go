package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	LogLevel            string
	DatabaseURL         string
	RedisURL            string
	StripeSecretKey     string
	StripeWebhookSecret string
	PaymentCurrency     string
	ReservationTTL      time.Duration
	SweepInterval       time.Duration
	SweeperEnabled      bool
	AutoMigrate         bool
	AdminKeyHash        string // bcrypt hash of the X-Admin-Key used by operator tooling
	OrderRatePerSecond  float64
	OrderRateBurst      int
	FrontendURLEndsWith string
	DevPassword         string
	HealthAdminKey      string
	HealthProbes        map[string]string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PAYMENT_CURRENCY", "usd")
	viper.SetDefault("RESERVATION_TTL", "15m")
	viper.SetDefault("RESERVATION_SWEEP_INTERVAL", "30s")
	viper.SetDefault("SWEEPER_ENABLED", true)
	viper.SetDefault("AUTO_MIGRATE", true)
	viper.SetDefault("ORDER_RATE_PER_SECOND", 2)
	viper.SetDefault("ORDER_RATE_BURST", 5)

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL_DEV")
	if env == "production" {
		dbURL = viper.GetString("DATABASE_URL_PROD")
	} else if env == "test" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL_DEV")
	}

	probes := map[string]string{}
	if env == "production" {
		probes["stripe"] = "https://api.stripe.com/healthcheck"
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		StripeSecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
		PaymentCurrency:     strings.ToLower(viper.GetString("PAYMENT_CURRENCY")),
		ReservationTTL:      viper.GetDuration("RESERVATION_TTL"),
		SweepInterval:       viper.GetDuration("RESERVATION_SWEEP_INTERVAL"),
		SweeperEnabled:      viper.GetBool("SWEEPER_ENABLED"),
		AutoMigrate:         viper.GetBool("AUTO_MIGRATE"),
		AdminKeyHash:        viper.GetString("ADMIN_KEY_HASH"),
		OrderRatePerSecond:  viper.GetFloat64("ORDER_RATE_PER_SECOND"),
		OrderRateBurst:      viper.GetInt("ORDER_RATE_BURST"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         viper.GetString("DEV_PASSWORD"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),
		HealthProbes:        probes,
	}, nil
}
