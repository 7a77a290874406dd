package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/hrimport/internal/application"
	"github.com/JonMunkholm/hrimport/internal/config"
	"github.com/JonMunkholm/hrimport/internal/core"
	"github.com/JonMunkholm/hrimport/internal/logging"
	"github.com/JonMunkholm/hrimport/internal/web"
)

func main() {
	// .env overrides the inherited environment so a checked-out config
	// wins over stale shell exports.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	app, err := application.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := web.NewServer(cfg, web.Deps{
		Service: app.Service,
		History: app.Store,
		Store:   app.Store,
		Metrics: app.Metrics.Handler(),
	})

	jobCtx, cancelJobs := context.WithCancel(ctx)
	go core.StartRetentionScheduler(jobCtx, app.Store, app.Retention())

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let an in-flight run finish so its report is recorded.
		limiter := app.Service.Limiter()
		if active := limiter.ActiveCount(); active > 0 {
			logger.Info("waiting for ingestion runs to finish", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("ingestion runs did not finish in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		cancelJobs()
		app.Close()
		os.Exit(1)
	}
	<-done
	logger.Info("server stopped")
}
