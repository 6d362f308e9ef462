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

	"go.uber.org/zap"

	"claimpoint/internal"
	"claimpoint/internal/config"
	"claimpoint/internal/logging"
	"claimpoint/internal/proxy"
	"claimpoint/internal/ratelimit"
	"claimpoint/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	must(err)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	must(err)
	defer closeStore()

	handler := proxy.NewHandler(store, storage.TableNames(), ratelimit.New(cfg.ProxyRateLimitRPS), logger)
	srv := &http.Server{
		Addr:              cfg.ProxyAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("records proxy listening", zap.String("addr", cfg.ProxyAddr), zap.String("backend", cfg.Backend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			must(err)
		}
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		must(srv.Shutdown(shutdownCtx))
		logger.Info("records proxy stopped")
	}
}

// openStore serves the local SQLite database or PostgreSQL. The proxy backend is refused:
// the proxy cannot front itself.
func openStore(ctx context.Context, cfg config.Config) (internal.RecordStore, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		if err := cfg.Require("DATABASE_URL", cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		store, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendSQLite:
		db, err := storage.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("records proxy needs BACKEND=sqlite or postgres, got %s", cfg.Backend)
	}
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
