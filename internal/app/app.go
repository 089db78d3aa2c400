// Package app wires the analysis pipeline to the result store and the
// results API server.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hydronet/catchflow/internal/log"
	"github.com/hydronet/catchflow/internal/server"
	"github.com/hydronet/catchflow/internal/storage"
	"github.com/hydronet/catchflow/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg    *config.Config
	store  *storage.Store
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.Config, store *storage.Store, logger *zap.SugaredLogger) *App {
	return &App{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// Pipeline returns the analysis pipeline backed by this application's
// configuration and store.
func (a *App) Pipeline() *Pipeline {
	return NewPipeline(a.cfg, a.store, a.logger)
}

// Serve starts the results API server and blocks until shutdown
func (a *App) Serve(ctx context.Context, addr string) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv, err := server.NewController(ctx, &wg, addr, a.store, a.logger)
	if err != nil {
		return err
	}
	if err := srv.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
