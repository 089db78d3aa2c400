// Package server exposes stored analysis results over a read-only
// HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/hydronet/catchflow/internal/storage"
	"go.uber.org/zap"
)

// Controller represents the results API server.
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	Server   http.Server
	store    *storage.Store
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new results API server bound to addr.
func NewController(ctx context.Context, wg *sync.WaitGroup, addr string, store *storage.Store, logger *zap.SugaredLogger) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("a result store is required")
	}

	ctrl := &Controller{
		ctx:    ctx,
		wg:     wg,
		store:  store,
		logger: logger,
	}

	if addr == "" {
		logger.Info("listen address not provided; defaulting to :8080")
		addr = ":8080"
	}

	ctrl.handlers = NewHandlers(ctrl)

	router := ctrl.setupRouter()
	ctrl.Server.Addr = addr
	ctrl.Server.Handler = router

	return ctrl, nil
}

// StartController starts the API server and shuts it down when the
// controller context is canceled.
func (c *Controller) StartController() error {
	c.logger.Info("Starting results API server...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("results API server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("Shutting down the results API server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(c.requestLogger)

	router.HandleFunc("/api/runs", c.handlers.ListRuns).Methods(http.MethodGet)
	router.HandleFunc("/api/runs/{id}/indices", c.handlers.GetIndices).Methods(http.MethodGet)
	router.HandleFunc("/api/runs/{id}/events", c.handlers.GetDroughtEvents).Methods(http.MethodGet)
	router.HandleFunc("/api/runs/{id}/thresholds/{method}", c.handlers.GetThreshold).Methods(http.MethodGet)
	router.HandleFunc("/api/runs/{id}/series/{name}", c.handlers.GetSeries).Methods(http.MethodGet)

	return router
}

// requestLogger logs each request with its status and duration
func (c *Controller) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.logger.Debugf("%s %s %d %v %d bytes", r.Method, r.URL.Path, sw.status, time.Since(start), sw.size)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}
