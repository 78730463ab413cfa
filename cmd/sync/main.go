package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stockagg/internal/catalog"
	"stockagg/internal/config"
	"stockagg/internal/logx"
	"stockagg/internal/postgres"
)

// One-shot vendor stock synchronization, for cron or manual runs.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName + "-sync")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	svc := catalog.NewService(db, cfg.SyncAttempts, cfg.SyncRetryDelay, log)
	if err := svc.Sync(ctx); err != nil {
		log.Error().Err(err).Msg("sync failed")
		os.Exit(1)
	}
	log.Info().Msg("sync completed")
}
