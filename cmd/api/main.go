package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockagg/internal/catalog"
	"stockagg/internal/config"
	"stockagg/internal/httpx"
	kafkax "stockagg/internal/kafka"
	"stockagg/internal/logx"
	"stockagg/internal/orders"
	"stockagg/internal/postgres"
	"stockagg/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logx.New(cfg.ServiceName + "-api")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.FulfillTopic, 1024, log)
	prod.Start(ctx)

	intake := &orders.Intake{DB: db}
	syncSvc := catalog.NewService(db, cfg.SyncAttempts, cfg.SyncRetryDelay, log)

	router := httpx.NewRouter(log)
	oh := &httpx.OrdersHandler{
		Intake:   intake,
		Producer: prod,
		Cache:    &redisx.Cache{R: rdb},
	}
	oh.Register(router)
	(&httpx.CatalogHandler{Sync: syncSvc}).Register(router)
	(&httpx.MockVendors{}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)

	prod.Close() // stop intake, flush buffer
	cancel()
	prod.WaitClosed()
}
