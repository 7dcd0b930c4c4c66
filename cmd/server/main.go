package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/alerts"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/analytics"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/broadcast"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/platform/config"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/platform/logging"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/redis"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/registry"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/scheduler"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/scoring"
	"github.com/rudrani-rane/Automated-Intelligence-Threat-System/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupRedis connects the optional mirror. Returns nil when no Redis URL
// is configured.
func setupRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		slog.Info("Redis mirroring disabled")
		return nil
	}

	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	redisClient := setupRedis(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	reg := registry.NewRegistry(clock,
		registry.WithQueueCapacity(cfg.QueueCapacity),
		registry.WithMaxConnections(cfg.MaxConnections),
		registry.WithHeartbeatTimeout(cfg.HeartbeatTimeout),
	)

	broadcaster := broadcast.NewBroadcaster(reg, clock)
	notifier := alerts.NewNotifier(broadcaster, clock, alerts.WithCooldown(cfg.AlertCooldown))
	store := analytics.NewStore(clock, analytics.WithRetention(cfg.RetentionWindow))
	scoringClient := scoring.NewClient(cfg.ScoresURL, clock)

	schedOpts := []scheduler.SchedulerOption{
		scheduler.WithInterval(cfg.UpdateInterval),
		scheduler.WithWatchlistSize(cfg.WatchlistSize),
	}
	if redisClient != nil {
		schedOpts = append(schedOpts, scheduler.WithMirror(redisClient))
	}
	sched := scheduler.NewScheduler(scoringClient, store, notifier, broadcaster, reg, clock, schedOpts...)

	srvOpts := []server.ServerOption{}
	if redisClient != nil {
		srvOpts = append(srvOpts, server.WithRedisCheck(redisClient))
	}
	srv := server.NewServer(cfg, reg, notifier, store, clock, srvOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		reg.Stop()
		return nil
	})

	if err := group.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
