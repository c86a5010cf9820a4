// Package api exposes the tracker's store and analyzers over HTTP: REST
// endpoints for alerts, baselines, trends, and comparisons, a websocket
// stream of fired alerts, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/analysis"
	"github.com/bench-track/bench-track/tracker/storage"
)

// Server serves the tracker HTTP API.
type Server struct {
	addr     string
	store    *storage.Store
	handlers *Handlers
	hub      *wsHub
	registry *prometheus.Registry
	log      logrus.FieldLogger
	http     *http.Server
}

// NewServer wires the API server over an opened store and its analyzers.
func NewServer(
	addr string,
	store *storage.Store,
	baselines analysis.BaselineManager,
	detector analysis.RegressionDetector,
	trends analysis.TrendAnalyzer,
	comparisons analysis.ComparisonAnalyzer,
	log logrus.FieldLogger,
) *Server {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	hub := newWSHub(log)

	return &Server{
		addr:     addr,
		store:    store,
		handlers: NewHandlers(store, baselines, detector, trends, comparisons, metrics, hub, log),
		hub:      hub,
		registry: registry,
		log:      log.WithField("component", "api-server"),
	}
}

// Router builds the route table. Exposed separately so handler tests can
// drive it through httptest without a listening socket.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handlers.HandleHealth).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handlers.HandleListAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}/resolve", s.handlers.HandleResolveAlert).Methods(http.MethodPost)
	api.HandleFunc("/baselines/{component}/{benchmark}", s.handlers.HandleGetBaseline).Methods(http.MethodGet)
	api.HandleFunc("/baselines", s.handlers.HandleSetBaseline).Methods(http.MethodPut)
	api.HandleFunc("/trends/{component}", s.handlers.HandleGetTrends).Methods(http.MethodGet)
	api.HandleFunc("/compare", s.handlers.HandleCompare).Methods(http.MethodGet)
	api.HandleFunc("/detect", s.handlers.HandleDetect).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.hub.HandleWS)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         s.addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.addr).Info("API server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("Shutting down API server")
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
