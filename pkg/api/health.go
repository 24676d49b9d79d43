package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type readyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now()})
}

// readyHandler checks the state store is reachable; it is the only
// dependency the admin surface itself needs to serve traffic.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if _, err := s.store.ListWorkers(); err != nil {
		checks["store"] = err.Error()
		ready = false
	} else {
		checks["store"] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}

	writeJSON(w, status, readyResponse{Status: state, Timestamp: time.Now(), Checks: checks})
}
