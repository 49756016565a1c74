package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nikolayk812/cartstate/internal/cartstore"
	"github.com/nikolayk812/cartstate/internal/catalog"
	"github.com/nikolayk812/cartstate/internal/config"
	"github.com/nikolayk812/cartstate/internal/httpapi"
	"github.com/nikolayk812/cartstate/internal/logger"
	"github.com/nikolayk812/cartstate/internal/memstore"
	"github.com/nikolayk812/cartstate/internal/metrics"
	"github.com/nikolayk812/cartstate/internal/migrations"
	"github.com/nikolayk812/cartstate/internal/persistence"
	"github.com/nikolayk812/cartstate/internal/port"
	"github.com/nikolayk812/cartstate/internal/redisstore"
	"github.com/nikolayk812/cartstate/internal/repository"
	"github.com/nikolayk812/cartstate/internal/tabsync"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const serviceName = "carttab"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment", nil)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "carttab stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCartMetrics(registry)

	sub, ready, closeBackend, err := openBackend(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer closeBackend()

	ctx = logg.WithOrigin(ctx, sub.Origin())

	adapter, err := persistence.NewAdapter(sub, cfg.Cart.StorageKey,
		persistence.WithLogger(logg),
		persistence.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("persistence.NewAdapter: %w", err)
	}

	syncer, err := tabsync.New(sub, cfg.Cart.StorageKey,
		tabsync.WithLogger(logg),
		tabsync.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("tabsync.New: %w", err)
	}

	store, err := cartstore.New(adapter,
		cartstore.WithSynchronizer(syncer),
		cartstore.WithLogger(logg),
		cartstore.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("cartstore.New: %w", err)
	}
	if err := store.Open(ctx); err != nil {
		return fmt.Errorf("store.Open: %w", err)
	}
	defer store.Close()

	router, err := httpapi.NewRouter(httpapi.Options{
		Store:                 store,
		Catalog:               catalog.Fallback(),
		ShopDomain:            cfg.Cart.ShopDomain,
		FreeShippingThreshold: cfg.Cart.FreeShippingThreshold,
		Logger:                logg,
		Gatherer:              registry,
		Ready:                 ready,
	})
	if err != nil {
		return fmt.Errorf("httpapi.NewRouter: %w", err)
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	logg.Info(logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"backend": cfg.Cart.Backend,
		"key":     cfg.Cart.StorageKey,
	}), "starting carttab server")

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server.ListenAndServe: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	logg.Info(shutdownCtx, "shutting down carttab server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

// openBackend returns the substrate handle of this process, a readiness probe and a cleanup func.
func openBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (port.Substrate, func(context.Context) error, func(), error) {
	switch cfg.Cart.Backend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		if err := migrations.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrations.Apply: %w", err)
		}
		kv, err := repository.NewKV(pool, cfg.DB.Channel, logg)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("repository.NewKV: %w", err)
		}
		return kv, pool.Ping, pool.Close, nil

	case config.BackendRedis:
		client, err := redisstore.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redisstore.New: %w", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}
		return client, client.Ping, closeFn, nil

	default:
		// a single process holds the only context, so nothing is ever synced in
		return memstore.NewHub().Open(), nil, func() {}, nil
	}
}
