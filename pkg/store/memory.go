package store

import (
	"sync"

	"fleethq/pkg/types"
)

// Memory is the reference Store: an in-memory map protected by a single
// mutex. It is the default backend and the one exercised by the rest of
// the repo's unit tests.
type Memory struct {
	mu sync.Mutex

	workerSeq     int64
	deploymentSeq int64
	replicaSeq    int64

	workers         map[int64]*types.Worker
	workersByHost   map[string]int64
	deployments     map[int64]*types.Deployment
	replicas        map[int64]*types.Replica
	replicasByDepl  map[int64]map[int64]struct{}
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		workers:        make(map[int64]*types.Worker),
		workersByHost:  make(map[string]int64),
		deployments:    make(map[int64]*types.Deployment),
		replicas:       make(map[int64]*types.Replica),
		replicasByDepl: make(map[int64]map[int64]struct{}),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) NextWorkerID() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workerSeq++
	return m.workerSeq, nil
}

func (m *Memory) NextDeploymentID() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deploymentSeq++
	return m.deploymentSeq, nil
}

func (m *Memory) NextReplicaID() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replicaSeq++
	return m.replicaSeq, nil
}

func cloneWorker(w *types.Worker) *types.Worker {
	cp := *w
	return &cp
}

func (m *Memory) CreateWorker(w *types.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneWorker(w)
	m.workers[cp.ID] = cp
	m.workersByHost[cp.Hostname] = cp.ID
	return nil
}

func (m *Memory) GetWorker(id int64) (*types.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWorker(w), nil
}

func (m *Memory) GetWorkerByHostname(hostname string) (*types.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.workersByHost[hostname]
	if !ok {
		return nil, ErrNotFound
	}
	w, ok := m.workers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWorker(w), nil
}

func (m *Memory) ListWorkers() ([]*types.Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		out = append(out, cloneWorker(w))
	}
	return out, nil
}

func (m *Memory) UpdateWorker(w *types.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workers[w.ID]; !ok {
		return ErrNotFound
	}
	cp := cloneWorker(w)
	m.workers[cp.ID] = cp
	m.workersByHost[cp.Hostname] = cp.ID
	return nil
}

func (m *Memory) DeleteWorker(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[id]
	if !ok {
		return nil
	}
	delete(m.workers, id)
	if m.workersByHost[w.Hostname] == id {
		delete(m.workersByHost, w.Hostname)
	}
	return nil
}

func cloneDeployment(d *types.Deployment) *types.Deployment {
	cp := *d
	cp.Assignments = append([]types.Assignment(nil), d.Assignments...)
	return &cp
}

func (m *Memory) CreateDeployment(d *types.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments[d.ID] = cloneDeployment(d)
	return nil
}

func (m *Memory) GetDeployment(id int64) (*types.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDeployment(d), nil
}

func (m *Memory) ListDeployments() ([]*types.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Deployment, 0, len(m.deployments))
	for _, d := range m.deployments {
		out = append(out, cloneDeployment(d))
	}
	return out, nil
}

func (m *Memory) UpdateDeployment(d *types.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deployments[d.ID]; !ok {
		return ErrNotFound
	}
	m.deployments[d.ID] = cloneDeployment(d)
	return nil
}

func (m *Memory) DeleteDeployment(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deployments, id)
	return nil
}

func cloneReplica(r *types.Replica) *types.Replica {
	cp := *r
	return &cp
}

func (m *Memory) CreateReplica(r *types.Replica) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replicas[r.ID] = cloneReplica(r)
	set, ok := m.replicasByDepl[r.DeploymentID]
	if !ok {
		set = make(map[int64]struct{})
		m.replicasByDepl[r.DeploymentID] = set
	}
	set[r.ID] = struct{}{}
	return nil
}

func (m *Memory) GetReplica(id int64) (*types.Replica, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replicas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReplica(r), nil
}

func (m *Memory) ListReplicasByDeployment(deploymentID int64) ([]*types.Replica, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.replicasByDepl[deploymentID]
	out := make([]*types.Replica, 0, len(set))
	for id := range set {
		if r, ok := m.replicas[id]; ok {
			out = append(out, cloneReplica(r))
		}
	}
	return out, nil
}

func (m *Memory) UpdateReplica(r *types.Replica) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.replicas[r.ID]; !ok {
		return ErrNotFound
	}
	m.replicas[r.ID] = cloneReplica(r)
	return nil
}

func (m *Memory) DeleteReplica(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replicas[id]
	if !ok {
		return nil
	}
	delete(m.replicas, id)
	if set, ok := m.replicasByDepl[r.DeploymentID]; ok {
		delete(set, id)
	}
	return nil
}
