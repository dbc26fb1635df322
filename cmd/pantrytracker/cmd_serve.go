package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/pantrytracker/internal/cache"
	"github.com/dukerupert/pantrytracker/internal/catalog"
	"github.com/dukerupert/pantrytracker/internal/seed"
	"github.com/dukerupert/pantrytracker/internal/server"
	"github.com/dukerupert/pantrytracker/internal/tracing"
)

const cleanupInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg, logger, db, err := boot()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, logger, cfg.OTLPEndpoint, "pantrytracker", cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	if err := seed.Run(ctx, db, seedOptions(cfg), logger.With("component", "seed")); err != nil {
		return fmt.Errorf("seed database: %w", err)
	}

	redisCache := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, catalog cache disabled until it recovers", "addr", cfg.RedisAddr, "error", err)
	}
	defer redisCache.Close()

	catalogClient := catalog.NewClient(catalog.Config{
		BaseURL:  cfg.CatalogURL,
		CacheTTL: cfg.CatalogCacheTTL,
	}, redisCache, logger.With("component", "catalog"))

	srv := server.New(db, cfg, catalogClient, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go runCleanup(ctx, srv, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pantrytracker listening", "addr", httpServer.Addr, "env", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", "error", err)
	}
	return nil
}

// runCleanup deletes expired sessions and stale rate-limit entries every hour
// until ctx is cancelled.
func runCleanup(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("cleanup loop stopped")
			return
		case <-ticker.C:
			srv.Cleanup(ctx)
		}
	}
}
