package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"herdshare-backend/internal/config"
	"herdshare-backend/internal/infrastructure/logging"
	"herdshare-backend/internal/interfaces/router"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load: " + err.Error())
	}
	logging.Setup(cfg.Env, cfg.LogLevel)

	rt, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create failed")
	}
	log.Info().Msg("Postgres connected")
	if rt.Redis != nil {
		log.Info().Msg("Redis connected")
	} else {
		log.Warn().Msg("REDIS_URL not set: offering locks and sessions are process-local")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SweeperEnabled {
		go rt.Services.Sweeper.Run(ctx)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.App.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	fmt.Printf("Server running at http://localhost:%s\n", cfg.Port)
	fmt.Printf("Health check: http://localhost:%s/health/json\n", cfg.Port)
	fmt.Println("---")

	if err := rt.App.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen failed")
	}
}
