package health

import (
	"encoding/json"
	"net/http"
	"time"

	"serp-similarity/pkg/logging"
)

// Server mounts the health endpoints. The admin listener owns the
// underlying http.Server; this type only contributes routes.
type Server struct {
	manager *Manager
	logger  *logging.ComponentLogger
}

func NewServer(manager *Manager, logger *logging.Logger) *Server {
	return &Server{
		manager: manager,
		logger:  logger.WithComponent("health_server"),
	}
}

// Register mounts the health endpoints onto the given mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.HandleFunc("/health/components", s.handleComponents)

	s.logger.Info("Registered health endpoints")
}

// handleHealth serves the full system report. Degraded still answers 200 so
// load balancers keep routing while an operator investigates.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.manager.CheckAll(r.Context())

	w.Header().Set("Content-Type", "application/json")
	switch report.Status {
	case StatusHealthy, StatusDegraded:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(report)
}

// handleLiveness answers Kubernetes-style liveness checks.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(s.manager.startTime).String(),
	})
}

// handleReadiness answers Kubernetes-style readiness checks.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	report := s.manager.CheckAll(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     report.Status,
		"ready":      report.Status != StatusUnhealthy,
		"timestamp":  report.Timestamp,
		"components": len(report.Components),
	})
}

// handleComponents serves per-component detail. ?cached=true returns the
// last results without re-running the checks.
func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	var report Report
	if r.URL.Query().Get("cached") == "true" {
		report = s.manager.Cached()
	} else {
		report = s.manager.CheckAll(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"components": report.Components,
		"summary":    report.Summary,
		"timestamp":  report.Timestamp,
	})
}
