package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Abhi-vish/financial-insights-ai/internal/demo"
)

func main() {
	cfg, err := demo.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load demo config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	runner, err := demo.NewRunner(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize demo runner", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(
		"demo started",
		slog.String("api_url", cfg.APIBaseURL),
		slog.String("format", cfg.Format),
		slog.Int("rows", cfg.Rows),
	)

	err = runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("demo stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("demo finished")
}
