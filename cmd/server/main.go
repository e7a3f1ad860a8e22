package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/vendorrates/internal/app"
	"github.com/JonMunkholm/vendorrates/internal/config"
	"github.com/JonMunkholm/vendorrates/internal/logging"
	"github.com/JonMunkholm/vendorrates/internal/metrics"
	"github.com/JonMunkholm/vendorrates/internal/rates"
	"github.com/JonMunkholm/vendorrates/internal/store"
	"github.com/JonMunkholm/vendorrates/internal/upload"
	"github.com/JonMunkholm/vendorrates/internal/web"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"page_size", cfg.View.PageSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	logger.Debug("effective configuration", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run wires the application and serves until ctx is done or a component
// fails.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rateStore, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer rateStore.Close()

	cache := rates.NewCache(logger.With("component", "cache"), m)
	unsubscribe, err := cache.Subscribe(ctx, rateStore, func(st *rates.State) {
		logger.Info("vendor rates updated", "vendors", len(st.Names), "version", st.Version)
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	limiter := upload.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	submitter := upload.NewSubmitter(rateStore, limiter, m, upload.SubmitterConfig{
		DefaultVendor: cfg.Upload.DefaultVendor,
		Timeout:       cfg.Upload.Timeout,
	})
	sessions := app.NewSessions(cache, submitter, app.Options{
		PageSize:      cfg.View.PageSize,
		InitialVendor: cfg.Upload.DefaultVendor,
		IdleTimeout:   cfg.View.SessionIdleTimeout,
		Logger:        logger.With("component", "sessions"),
		Metrics:       m,
	})

	server := web.NewServer(web.Deps{
		Config:   *cfg,
		Sessions: sessions,
		Cache:    cache,
		Store:    rateStore,
		Limiter:  limiter,
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error { return sessions.Run(gctx) })
	g.Go(func() error { return server.RunMaintenance(gctx) })

	// Graceful shutdown on signal or when any of the above fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// In-flight store writes finish before the store is closed.
		if status := limiter.Status(); status.Active > 0 {
			logger.Info("waiting for uploads to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				logger.Warn("uploads did not complete in time", "error", err)
			} else {
				logger.Info("all uploads completed")
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
