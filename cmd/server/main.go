package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ujpm/GGH-website-sub000/internal/api"
	"github.com/ujpm/GGH-website-sub000/internal/auth"
	"github.com/ujpm/GGH-website-sub000/internal/config"
	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/logging"
	"github.com/ujpm/GGH-website-sub000/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		logging.Must("production", "info").Fatal("config", zap.Error(err))
	}
	logger := logging.Must(cfg.AppEnv, cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// run serves until a signal or a server error. Stores are closed before it
// returns.
func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			logger.Warn("store close", zap.Error(err))
			return
		}
		logger.Info("store closed", zap.String("driver", stores.Driver))
	}()

	authSvc, err := auth.NewService(stores.Users, auth.Config{
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.TokenTTL,
	}, logger)
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}
	if err := authSvc.EnsureAdminAccount(ctx, auth.AdminAccount{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	}); err != nil {
		return fmt.Errorf("admin bootstrap: %w", err)
	}

	calls := funding.NewService(stores.Calls, logger, funding.Options{SeedOnEmpty: cfg.DemoSeed})

	srv := api.NewServer(calls, authSvc, api.Options{
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins(),
		Development:    cfg.IsDevelopment(),
		RequestTimeout: cfg.RequestTimeout,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.Addr()) }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
	return nil
}
