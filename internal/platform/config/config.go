// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// ScoresURL points at the external scoring engine.
	ScoresURL string `env:"SCORES_URL"`

	// RedisURL enables best-effort mirroring of alerts and snapshots when set.
	RedisURL string `env:"REDIS_URL"`

	UpdateInterval   time.Duration `env:"UPDATE_INTERVAL" default:"30s"`
	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT" default:"90s"`
	RetentionWindow  time.Duration `env:"RETENTION_WINDOW" default:"720h"` // 30 days
	AlertCooldown    time.Duration `env:"ALERT_COOLDOWN" default:"5m"`

	QueueCapacity  int `env:"QUEUE_CAPACITY" default:"100"`
	WatchlistSize  int `env:"WATCHLIST_SIZE" default:"5"`
	MaxConnections int `env:"MAX_CONNECTIONS" default:"10000"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.ScoresURL == "" {
		return fmt.Errorf("SCORES_URL is required")
	}
	if cfg.UpdateInterval < time.Second {
		return fmt.Errorf("UPDATE_INTERVAL must be at least 1s, got %s", cfg.UpdateInterval)
	}
	if cfg.QueueCapacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be positive, got %d", cfg.QueueCapacity)
	}
	if cfg.WatchlistSize < 1 {
		return fmt.Errorf("WATCHLIST_SIZE must be positive, got %d", cfg.WatchlistSize)
	}
	if cfg.RetentionWindow < time.Hour {
		return fmt.Errorf("RETENTION_WINDOW must be at least 1h, got %s", cfg.RetentionWindow)
	}
	if cfg.MaxConnections < 1 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}
	return nil
}
