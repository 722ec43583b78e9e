// Package metrics serves the Prometheus scrape endpoint.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"backtest_accounts/internal/core"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the accounting instrument set on a Prometheus scrape
// endpoint.
type Server struct {
	port   int
	logger core.ILogger
	srv    *http.Server
}

// NewServer creates a metrics server listening on the given port once
// started.
func NewServer(port int, logger core.ILogger) *Server {
	return &Server{
		port:   port,
		logger: logger.WithField("component", "metrics_server"),
	}
}

// Start serves /metrics in the background until Stop is called.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("Starting Prometheus metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()
}

// Stop gracefully stops the metrics server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping metrics server")
	return s.srv.Shutdown(ctx)
}
