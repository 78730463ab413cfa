package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockagg/internal/config"
	"stockagg/internal/fulfill"
	kafkax "stockagg/internal/kafka"
	"stockagg/internal/logx"
	"stockagg/internal/orders"
	"stockagg/internal/postgres"
	"stockagg/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName + "-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Retries go back onto the same topic this worker consumes.
	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.FulfillTopic, 1024, log)
	prod.Start(ctx)

	machine := fulfill.NewMachine(&orders.PGStore{DB: db}, fulfill.SystemClock(), log)
	retrier := fulfill.NewRetrier(machine, prod, fulfill.SystemClock(), cfg.MaxRetry,
		&redisx.Cache{R: rdb}, log)

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.FulfillGroup, cfg.FulfillTopic, log)

	go func() {
		log.Info().Str("group", cfg.FulfillGroup).Str("topic", cfg.FulfillTopic).Msg("worker started")
		if err := cons.Start(ctx, retrier.Handle); err != nil {
			log.Error().Err(err).Msg("consumer exit")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down worker")

	retrier.Stop()
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}
