package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Abhi-vish/financial-insights-ai/internal/config"
	"github.com/Abhi-vish/financial-insights-ai/internal/migrations"
	sessionpostgres "github.com/Abhi-vish/financial-insights-ai/internal/session/postgres"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	if err := run(*direction, *steps); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(direction string, steps int) error {
	cfg, err := config.LoadFromEnv("insights-migrate")
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if cfg.Catalog.DSN == "" {
		return fmt.Errorf("INSIGHTS_CATALOG_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sessionpostgres.Open(ctx, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("connect catalog db: %w", err)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch direction {
	case "up":
		applied, err := runner.Up(ctx, db, steps)
		if err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		applied, err := runner.Down(ctx, db, steps)
		if err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		fmt.Printf("rolled back %d migration(s)\n", applied)
	default:
		return fmt.Errorf("invalid direction: %s", direction)
	}
	return nil
}
