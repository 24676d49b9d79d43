// Package api implements the admin HTTP surface (§6.2): repository deploy
// requests and read-only views over deployments, workers, and replicas,
// plus a Server-Sent Events feed over the domain event broker.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"fleethq/pkg/deploy"
	"fleethq/pkg/events"
	"fleethq/pkg/log"
	"fleethq/pkg/metrics"
	"fleethq/pkg/store"
	"fleethq/pkg/types"
)

var apiLog = log.WithComponent("api")

// Server is the admin HTTP surface.
type Server struct {
	store  store.Store
	deploy *deploy.Manager
	broker *events.Broker
	router *mux.Router
	http   *http.Server
}

// NewServer builds the admin HTTP surface. broker may be nil, in which case
// /events reports an empty stream.
func NewServer(s store.Store, d *deploy.Manager, broker *events.Broker) *Server {
	srv := &Server{store: s, deploy: d, broker: broker, router: mux.NewRouter()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.router.HandleFunc("/deploy", s.handleDeploy).Methods(http.MethodPost)
	s.router.HandleFunc("/deployments", s.handleListDeployments).Methods(http.MethodGet)
	s.router.HandleFunc("/deployment/{id}", s.handleGetDeployment).Methods(http.MethodGet)
	s.router.HandleFunc("/workers", s.handleListWorkers).Methods(http.MethodGet)
	s.router.HandleFunc("/replicas/{deploymentId}", s.handleListReplicas).Methods(http.MethodGet)
	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.readyHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler())
}

// Start listens on addr until the process exits or Stop is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // /events streams indefinitely
		IdleTimeout:  60 * time.Second,
	}
	apiLog.Info().Str("addr", addr).Msg("admin HTTP surface listening")
	return s.http.ListenAndServe()
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.router.ServeHTTP(rw, r)
	metrics.APIRequestsTotal.WithLabelValues(r.URL.Path, fmt.Sprintf("%d", rw.status)).Inc()
	metrics.APIRequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError always answers with a 5xx per §6.2 — the admin surface treats
// every deploy-path failure (validation, placement, store) as a server-side
// condition rather than distinguishing 4xx causes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrInvalidRepository):
		status = http.StatusBadGateway
	case errors.Is(err, types.ErrInsufficientWorkers):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

