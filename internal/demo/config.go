package demo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

// LoadConfigFromEnv reads the demo settings from INSIGHTS_DEMO_* variables.
func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "INSIGHTS_DEMO_API_URL", &cfg.APIBaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "INSIGHTS_DEMO_API_KEY", &cfg.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "INSIGHTS_DEMO_FORMAT", &cfg.Format); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "INSIGHTS_DEMO_ROWS", &cfg.Rows); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "INSIGHTS_DEMO_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "INSIGHTS_DEMO_HTTP_TIMEOUT", &cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return Config{}, fmt.Errorf("INSIGHTS_DEMO_API_URL is required")
	}
	if cfg.Format != "csv" && cfg.Format != "parquet" {
		return Config{}, fmt.Errorf("INSIGHTS_DEMO_FORMAT must be csv or parquet")
	}
	if cfg.Rows <= 0 {
		return Config{}, fmt.Errorf("INSIGHTS_DEMO_ROWS must be > 0")
	}
	if cfg.HTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("INSIGHTS_DEMO_HTTP_TIMEOUT must be > 0")
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Format = strings.TrimSpace(cfg.Format)
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
