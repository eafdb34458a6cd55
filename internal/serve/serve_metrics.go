package serve

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/monitor"
)

// MetricsServeOptions configures the scrape endpoint. It listens on its own port so it is never exposed with the API.
type MetricsServeOptions struct {
	Port        int
	Environment string

	MonitorService monitor.MonitorServiceInterface
	MetricType     monitor.MetricType
}

func MetricsServe(opts MetricsServeOptions, httpServer HTTPServerInterface) error {
	handler, err := handleMetricsHTTP(opts)
	if err != nil {
		return fmt.Errorf("setting up the metrics server: %w", err)
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	logger := log.DefaultLogger.WithFields(log.F{"metric_type": opts.MetricType, "addr": addr})
	httpServer.Run(supporthttp.Config{
		ListenAddr:   addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  2 * time.Minute,
		OnStarting:   func() { logger.Info("Starting metrics server") },
		OnStopping:   func() { logger.Info("Stopping metrics server") },
	})
	return nil
}

func handleMetricsHTTP(opts MetricsServeOptions) (http.Handler, error) {
	metricsHandler, err := opts.MonitorService.GetMetricHTTPHandler()
	if err != nil {
		return nil, fmt.Errorf("getting metric http.Handler: %w", err)
	}

	mux := chi.NewMux()
	mux.Use(middleware.GetHead)
	mux.Get("/metrics", metricsHandler.ServeHTTP)
	return mux, nil
}
