package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/api"
	"github.com/Abhi-vish/financial-insights-ai/internal/auth"
	"github.com/Abhi-vish/financial-insights-ai/internal/config"
	"github.com/Abhi-vish/financial-insights-ai/internal/engine"
	"github.com/Abhi-vish/financial-insights-ai/internal/ingest"
	duckdbloader "github.com/Abhi-vish/financial-insights-ai/internal/ingest/duckdb"
	"github.com/Abhi-vish/financial-insights-ai/internal/llm"
	"github.com/Abhi-vish/financial-insights-ai/internal/maintenance"
	"github.com/Abhi-vish/financial-insights-ai/internal/observability"
	"github.com/Abhi-vish/financial-insights-ai/internal/sandbox"
	"github.com/Abhi-vish/financial-insights-ai/internal/session"
	sessionpostgres "github.com/Abhi-vish/financial-insights-ai/internal/session/postgres"
	s3store "github.com/Abhi-vish/financial-insights-ai/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("insights-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	ingestOpts := ingest.Options{
		MaxRows:      cfg.Upload.MaxRows,
		SampleValues: cfg.Upload.SampleValues,
	}

	memory := session.NewMemoryStore(cfg.Session.TTL)
	var sessions session.Store = memory
	readiness := []api.ReadinessCheck{api.CheckObjectStoreConfig(cfg), api.CheckAIConfig(cfg)}

	if cfg.Catalog.Enabled {
		catalogDB, err := sessionpostgres.Open(context.Background(), cfg.Catalog)
		if err != nil {
			logger.Error("failed to open session catalog db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = catalogDB.Close() }()

		catalog := sessionpostgres.NewCatalog(catalogDB)
		loader := duckdbloader.NewLoader(objectStore)
		sessions = session.NewRehydratingStore(memory, catalog, loader, cfg.Session.TTL, ingestOpts, logger)
		readiness = append(readiness, catalog.HealthCheck)
	}

	client, err := llm.NewClient(llm.Config{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize language model client", slog.Any("error", err))
		os.Exit(1)
	}
	generator := llm.NewRetrying(client, cfg.AI.MaxRetries, 0)

	executor := sandbox.New(sandbox.Limits{
		Time:       cfg.Sandbox.TimeLimit,
		Rows:       cfg.Sandbox.RowLimit,
		MaxGroups:  cfg.Sandbox.MaxGroups,
		CheckEvery: cfg.Sandbox.CheckEvery,
	})

	queryEngine := engine.New(sessions, generator, executor, logger)

	sweeper := &maintenance.Service{
		Sessions:    sessions,
		ObjectStore: objectStore,
		Config:      maintenance.Config{SweepInterval: cfg.Session.SweepInterval},
		Logger:      logger,
	}

	deps := api.Dependencies{
		Logger:            logger,
		Sessions:          sessions,
		ObjectStore:       objectStore,
		Engine:            queryEngine,
		Maintenance:       sweeper,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
