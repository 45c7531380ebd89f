package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindsgn-studio/novawatch/bot"
	"github.com/mindsgn-studio/novawatch/database"
	"github.com/mindsgn-studio/novawatch/internal/config"
	"github.com/mindsgn-studio/novawatch/internal/model"
	"github.com/mindsgn-studio/novawatch/internal/pkg/cyclelock"
	"github.com/mindsgn-studio/novawatch/internal/pkg/logger"
	"github.com/mindsgn-studio/novawatch/scraper"
	"github.com/mindsgn-studio/novawatch/watch"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewDefault("info").Error("config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	appLogger := logger.NewDefault(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, appLogger)
	stop()
	if err != nil {
		appLogger.Error("watcher exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	appLogger.Info("watcher stopped")
}

// run owns every resource of the process. Returning, for any reason, releases
// them in reverse order of acquisition.
func run(ctx context.Context, cfg model.Config, appLogger *slog.Logger) error {
	store, err := database.NewStore(ctx, cfg, appLogger)
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			appLogger.Warn("error disconnecting mongo", slog.String("error", err.Error()))
		}
	}()

	discord, err := bot.New(cfg, store, appLogger)
	if err != nil {
		return fmt.Errorf("create discord bot: %w", err)
	}
	if err := discord.Open(); err != nil {
		return fmt.Errorf("start discord bot: %w", err)
	}
	defer func() {
		if err := discord.Close(); err != nil {
			appLogger.Warn("error closing discord session", slog.String("error", err.Error()))
		}
	}()

	locker := cyclelock.Chain{cyclelock.NewLocal()}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Warn("redis unavailable, cycle lock is process local",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()))
		} else {
			locker = append(locker, cyclelock.NewRedis(rdb, cyclelock.DefaultKey, cfg.CycleLockTTL, appLogger))
			appLogger.Info("connected to redis", slog.String("addr", cfg.RedisAddr))
		}
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			appLogger.Info("metrics server started", slog.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				appLogger.Warn("metrics shutdown error", slog.String("error", err.Error()))
			}
		}()
	}

	watcher := watch.New(cfg, store, scraper.New(cfg, appLogger), discord, locker, appLogger)
	err = watcher.Start(ctx)
	appLogger.Info("shutting down")
	return err
}
