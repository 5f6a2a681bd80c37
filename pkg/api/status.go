// Package api serves the embedded status endpoint of a running holder.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gpuhold/gpuhold/pkg/logging"
)

// ReservationInfo is one held block as exposed over HTTP. Tokens are
// release capabilities and are never exposed.
type ReservationInfo struct {
	Device    int    `json:"device"`
	SizeBytes uint64 `json:"size_bytes"`
}

// Snapshot is the externally visible state of a holder
type Snapshot struct {
	State        string            `json:"state"`
	Cause        string            `json:"cause,omitempty"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	HeldBytes    uint64            `json:"held_bytes"`
	Reservations []ReservationInfo `json:"reservations"`
}

// Source provides point-in-time snapshots of the holder state
type Source interface {
	Snapshot() Snapshot
}

// Server serves holder status and Prometheus metrics
type Server struct {
	src Source
	log *logging.Logger
}

// NewServer creates a status server reading from src
func NewServer(src Source, log *logging.Logger) *Server {
	return &Server{src: src, log: log}
}

// RegisterRoutes registers all status routes
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.Health).Methods("GET")
	r.HandleFunc("/status", s.Status).Methods("GET")
	r.HandleFunc("/reservations", s.Reservations).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Start runs the server on addr in a background goroutine and returns
// it so the caller can shut it down.
func (s *Server) Start(addr string) *http.Server {
	r := mux.NewRouter()
	s.RegisterRoutes(r)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		s.log.Info("Status server listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Status server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	return srv
}

// Shutdown stops a server started with Start
func (s *Server) Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}

// Health handles liveness checks
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// Status returns the holder state without the reservation list
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	snap := s.src.Snapshot()
	snap.Reservations = nil
	writeJSON(w, snap)
}

// Reservations returns the full snapshot including held blocks
func (s *Server) Reservations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.src.Snapshot())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
