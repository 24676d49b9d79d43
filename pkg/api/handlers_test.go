package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleethq/pkg/clock"
	"fleethq/pkg/deploy"
	"fleethq/pkg/placement"
	"fleethq/pkg/repo"
	"fleethq/pkg/store"
	"fleethq/pkg/types"
)

type noopRouter struct{}

func (noopRouter) RouteTo(workerID int64, msg any) error { return nil }

func newDeployTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	s := store.NewMemory()
	v := repo.New(srv.URL, time.Second)
	p := placement.New(s)
	c := clock.NewFake(time.Unix(0, 0))
	mgr := deploy.New(s, v, p, noopRouter{}, c, nil)

	require.NoError(t, s.CreateWorker(&types.Worker{
		ID: 1, Hostname: "host", Status: types.WorkerStatusActive, LastHeartbeat: time.Now(),
	}))

	return NewServer(s, mgr, nil), s
}

func TestHandleDeploySucceeds(t *testing.T) {
	srv, _ := newDeployTestServer(t)

	body, _ := json.Marshal(deployRequest{GitHubRepo: "acme/app", UserName: "alice", MinReplicas: 1, MaxReplicas: 1})
	req := httptest.NewRequest(http.MethodPost, "/deploy", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var d types.Deployment
	require.NoError(t, json.NewDecoder(w.Body).Decode(&d))
	require.Equal(t, types.DeploymentStatusActive, d.Status)
}

func TestHandleDeployInsufficientWorkersReturns5xx(t *testing.T) {
	srv, _ := newDeployTestServer(t)

	body, _ := json.Marshal(deployRequest{GitHubRepo: "acme/app", UserName: "alice", MinReplicas: 5, MaxReplicas: 5})
	req := httptest.NewRequest(http.MethodPost, "/deploy", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.GreaterOrEqual(t, w.Code, 500)

	var body2 map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body2))
	require.NotEmpty(t, body2["error"])
}

func TestHandleGetDeploymentNotFound(t *testing.T) {
	srv, _ := newDeployTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/deployment/999", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListReplicasSortedAscending(t *testing.T) {
	srv, s := newDeployTestServer(t)

	require.NoError(t, s.CreateDeployment(&types.Deployment{ID: 1}))
	require.NoError(t, s.CreateReplica(&types.Replica{ID: 3, DeploymentID: 1, ReplicaNumber: 3}))
	require.NoError(t, s.CreateReplica(&types.Replica{ID: 1, DeploymentID: 1, ReplicaNumber: 1}))
	require.NoError(t, s.CreateReplica(&types.Replica{ID: 2, DeploymentID: 1, ReplicaNumber: 2}))

	req := httptest.NewRequest(http.MethodGet, "/replicas/1", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var replicas []types.Replica
	require.NoError(t, json.NewDecoder(w.Body).Decode(&replicas))
	require.Len(t, replicas, 3)
	require.Equal(t, 1, replicas[0].ReplicaNumber)
	require.Equal(t, 3, replicas[2].ReplicaNumber)
}

func TestHandleListWorkersFreshestFirst(t *testing.T) {
	srv, s := newDeployTestServer(t)

	require.NoError(t, s.CreateWorker(&types.Worker{ID: 2, Hostname: "h2", LastHeartbeat: time.Now().Add(time.Hour)}))

	req := httptest.NewRequest(http.MethodGet, "/workers", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var workers []types.Worker
	require.NoError(t, json.NewDecoder(w.Body).Decode(&workers))
	require.Len(t, workers, 2)
	require.Equal(t, int64(2), workers[0].ID)
}
