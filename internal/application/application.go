// Package application assembles the storage backend, the ingestion
// service and its observers from configuration. The HTTP server and the
// command-line tool both start from here.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/hrimport/internal/config"
	"github.com/JonMunkholm/hrimport/internal/core"
	"github.com/JonMunkholm/hrimport/internal/metrics"
	"github.com/JonMunkholm/hrimport/internal/secure"
	badgerstore "github.com/JonMunkholm/hrimport/internal/store/badger"
	"github.com/JonMunkholm/hrimport/internal/store/postgres"
)

// Backend is everything the application needs from a store.
type Backend interface {
	core.Store
	core.History
	core.AuditPurger
	Ping(ctx context.Context) error
}

// App is an assembled, running configuration. Close releases it.
type App struct {
	Config  *config.Config
	Store   Backend
	Service *core.Service
	Metrics *metrics.Collection

	pool   *pgxpool.Pool
	closer func() error
	logger *slog.Logger
}

// New opens the configured store and builds the service around it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, logger: logger}

	var sealer *secure.Sealer
	if cfg.Security.CNICSealKey != "" {
		s, err := secure.NewSealerFromBase64(cfg.Security.CNICSealKey)
		if err != nil {
			return nil, fmt.Errorf("cnic seal key: %w", err)
		}
		sealer = s
	} else {
		logger.Warn("CNIC_SEAL_KEY not set, CNICs are stored in clear")
	}

	if err := app.openStore(ctx, sealer); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.New(reg)

	app.Service = core.NewService(app.Store, core.Options{
		CountryCode:         cfg.Ingest.CountryCode,
		MaxHeaderSearchRows: cfg.Ingest.MaxHeaderSearchRows,
		RunTimeout:          cfg.Ingest.Timeout,
		MaxConcurrentRuns:   cfg.Ingest.MaxConcurrent,
		MaxWaitTime:         cfg.Ingest.MaxWaitTime,
		Observer:            app.Metrics,
		Logger:              logger,
	})
	return app, nil
}

func (a *App) openStore(ctx context.Context, sealer *secure.Sealer) error {
	cfg := a.Config
	switch strings.ToLower(cfg.Store.Backend) {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, postgres.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.logger.Info("connected to database", "name", databaseName(cfg.Database.URL))

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return fmt.Errorf("migrate: %w", err)
			}
			a.logger.Info("schema up to date")
		}
		a.pool = pool
		a.Store = postgres.New(pool, sealer)
		a.closer = func() error { pool.Close(); return nil }

	case config.BackendBadger:
		store, err := badgerstore.Open(badgerstore.Options{
			Path:     cfg.Store.BadgerPath,
			InMemory: cfg.Store.BadgerInMemory,
			Sealer:   sealer,
			Logger:   a.logger,
		})
		if err != nil {
			return fmt.Errorf("open badger store: %w", err)
		}
		a.logger.Info("opened embedded store", "path", cfg.Store.BadgerPath, "in_memory", cfg.Store.BadgerInMemory)
		a.Store = store
		a.closer = store.Close

	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return nil
}

// Migrate applies the relational schema. The embedded store has none.
func (a *App) Migrate(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return postgres.Migrate(ctx, a.pool)
}

// Retention returns the audit retention job settings.
func (a *App) Retention() core.RetentionConfig {
	return core.RetentionConfig{
		RetentionDays: a.Config.Retention.AuditRetentionDays,
		BatchSize:     a.Config.Retention.BatchSize,
		CheckInterval: a.Config.Retention.CheckInterval,
	}
}

// Close releases the store.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer()
	a.closer = nil
	if err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// databaseName is the path of a postgres URL, for logs that must not
// carry credentials.
func databaseName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Path, "/")
}
