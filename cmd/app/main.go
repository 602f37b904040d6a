// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"activation-card-service/internal/config"
	"activation-card-service/internal/domain/ports/repository"
	pg "activation-card-service/internal/infra/db/postgres"
	"activation-card-service/internal/infra/logging"
	"activation-card-service/internal/infra/metrics"
	red "activation-card-service/internal/infra/redis"
	"activation-card-service/internal/infra/sched"
	"activation-card-service/internal/infra/web"
	"activation-card-service/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode (console logs, no sampling)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Repositories ----
	// Redis is optional: without it the service loses the read cache and
	// redemption throttling but keeps working.
	var cardRepo repository.ActivationCardRepository = pg.NewCardRepo(pool)
	var limiter usecase.RateLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, continuing without cache")
		} else {
			defer redisClient.Close()
			cardRepo = pg.NewCardRepoCacheDecorator(cardRepo, redisClient, cfg.Redis.TTL)
			limiter = red.NewRateLimiter(redisClient)
		}
	}

	// ---- Use cases ----
	txManager := pg.NewTxManager(pool)
	cardUC := usecase.NewCardUseCase(cardRepo, txManager, limiter, logger)
	statsUC := usecase.NewStatsUseCase(cardRepo, logger)

	// ---- Metrics ----
	metrics.MustRegister()

	// ---- HTTP API ----
	server := web.NewServer(cardUC, statsUC, cfg.Admin.APIKey, logger)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Admin.Port).Msg("HTTP API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Expiry sweep ----
	worker := sched.NewExpiryWorker(cfg.Scheduler.SweepInterval, cardUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
