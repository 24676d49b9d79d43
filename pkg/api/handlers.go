package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"fleethq/pkg/store"
)

type deployRequest struct {
	GitHubRepo  string `json:"githubRepo"`
	UserName    string `json:"userName"`
	MinReplicas int    `json:"minReplicas,omitempty"`
	MaxReplicas int    `json:"maxReplicas,omitempty"`
}

const (
	defaultMinReplicas = 1
	defaultMaxReplicas = 3
)

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "malformed request body"})
		return
	}

	min, max := req.MinReplicas, req.MaxReplicas
	if min == 0 {
		min = defaultMinReplicas
	}
	if max == 0 {
		max = defaultMaxReplicas
	}

	d, err := s.deploy.Create(r.Context(), req.GitHubRepo, req.UserName, min, max)
	if err != nil {
		apiLog.Error().Err(err).Str("repo", req.GitHubRepo).Msg("deploy request failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleListDeployments returns the 10 most recently created deployments,
// newest first (§6.2).
func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.ListDeployments()
	if err != nil {
		writeError(w, err)
		return
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > 10 {
		all = all[:10]
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	d, err := s.store.GetDeployment(id)
	if err != nil {
		if err == store.ErrNotFound {
			http.NotFound(w, r)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleListWorkers returns all known workers, freshest heartbeat first
// (§6.2).
func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.store.ListWorkers()
	if err != nil {
		writeError(w, err)
		return
	}
	sort.Slice(workers, func(i, j int) bool { return workers[i].LastHeartbeat.After(workers[j].LastHeartbeat) })
	writeJSON(w, http.StatusOK, workers)
}

// handleListReplicas returns a deployment's replicas sorted by
// replicaNumber ascending (§6.2).
func (s *Server) handleListReplicas(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["deploymentId"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	replicas, err := s.store.ListReplicasByDeployment(id)
	if err != nil {
		writeError(w, err)
		return
	}
	sort.Slice(replicas, func(i, j int) bool { return replicas[i].ReplicaNumber < replicas[j].ReplicaNumber })
	writeJSON(w, http.StatusOK, replicas)
}

// handleEvents streams the domain event broker as Server-Sent Events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if s.broker == nil {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		<-r.Context().Done()
		return
	}

	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}
