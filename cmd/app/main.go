package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medscan-registration/internal/config"
	"medscan-registration/internal/domain/ports/repository"
	recordAdapter "medscan-registration/internal/infra/adapters/record"
	scanAdapter "medscan-registration/internal/infra/adapters/scan"
	pg "medscan-registration/internal/infra/db/postgres"
	"medscan-registration/internal/infra/logging"
	"medscan-registration/internal/infra/metrics"
	"medscan-registration/internal/infra/push"
	red "medscan-registration/internal/infra/redis"
	"medscan-registration/internal/infra/scheduler"
	"medscan-registration/internal/infra/web"
	"medscan-registration/internal/infra/worker"
	"medscan-registration/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	resultCache := red.NewResultCacheRepo(redisClient, cfg.Pipeline.CacheWindow)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Postgres (optional scan-job journal) ----
	var journal repository.ScanJobRepository
	if cfg.Database.URL != "" {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		journal = pg.NewScanJobRepo(pool)
	} else {
		logger.Warn().Msg("database.url not set, scan-job journal disabled")
	}

	// ---- External service adapters ----
	scanSvc, err := scanAdapter.NewHTTPAdapter(cfg.Scan.BaseURL, cfg.Scan.Token, cfg.Scan.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("scan adapter")
	}
	recordSvc, err := recordAdapter.NewHTTPAdapter(cfg.Records.BaseURL, cfg.Records.Token, cfg.Records.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("record adapter")
	}

	// ---- Shared pipeline infrastructure ----
	registry := push.NewRegistry(logger)
	pool := worker.NewPool(cfg.Pipeline.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	opts := usecase.Options{
		PollAttempts: cfg.Pipeline.PollAttempts,
		PollInterval: cfg.Pipeline.PollInterval,
		CacheWindow:  cfg.Pipeline.CacheWindow,
	}
	pipelines := web.NewPipelines(func(userID string) usecase.RegistrationUseCase {
		return usecase.NewRegistrationUseCase(userID, scanSvc, recordSvc, registry, resultCache, journal, pool, opts, logger)
	}, cfg.Pipeline.IdleEviction)

	janitor := scheduler.NewScheduler(time.Minute, pipelines, logger)
	janitor.Start(ctx)
	defer janitor.Stop()

	// ---- HTTP server ----
	sessionSecret := cfg.Server.SessionSecret
	if sessionSecret == "" {
		logger.Warn().Msg("server.session_secret not set, using dev secret (INSECURE)")
		sessionSecret = "dev-only-secret"
	}
	auth := web.NewAuthManager(sessionSecret, !cfg.Runtime.Dev, cfg.Server.SessionTTL)
	server := web.NewServer(pipelines, auth, registry, rateLimiter,
		cfg.Pipeline.ScansPerHour, cfg.Server.WebhookSecret, logger)

	httpSrv := web.NewHTTPServer(fmt.Sprintf(":%d", cfg.Server.Port), server.Routes())
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
