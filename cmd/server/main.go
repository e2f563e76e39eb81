package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/careview/backend/internal/api"
	"github.com/careview/backend/internal/app"
	"github.com/careview/backend/internal/app/maintenance"
	"github.com/careview/backend/internal/auth"
	"github.com/careview/backend/internal/cache"
	"github.com/careview/backend/internal/notifications"
	"github.com/careview/backend/internal/realtime"
	"github.com/careview/backend/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("careview-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	store, err := buildStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	c := cache.New(store, cfg.Cache.DefaultTTL)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.Session.Secret,
		Issuer: "careview",
	})
	if err != nil {
		return fmt.Errorf("initialise token service: %w", err)
	}

	sessions, err := auth.NewSessionService(c, tokens, auth.SessionConfig{
		DefaultTTL: cfg.Session.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise session service: %w", err)
	}

	notificationStore, err := notifications.NewStore(c, notifications.StoreConfig{
		TTL: cfg.Notifications.TTL,
	})
	if err != nil {
		return fmt.Errorf("initialise notification store: %w", err)
	}

	hub := realtime.NewHub(sessions, notificationStore, realtime.Config{
		PingInterval: cfg.Realtime.PingInterval,
		IdleTimeout:  cfg.Realtime.IdleTimeout,
	})
	notificationStore.AddSink(hub)
	hub.Start()
	defer hub.Stop()

	cleaner := maintenance.NewCleaner(sessions, notificationStore)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Dependencies{
		Config:        cfg,
		Cache:         c,
		Sessions:      sessions,
		Notifications: notificationStore,
		Hub:           hub,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

// buildStore connects to Redis when enabled, falling back to the in-process
// store so development setups work without one.
func buildStore(cfg *app.Config, log *zap.Logger) (cache.Store, error) {
	if cfg.Redis.Enabled {
		store, err := cache.NewRedisStore(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("redis unavailable; falling back to in-memory store", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Redis.Address))
			return store, nil
		}
	}

	log.Info("using in-memory cache store")
	return cache.NewMemoryStore(), nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}
