// Package registry implements the Worker Registry (C3): it tracks
// connected workers, their reported load, heartbeat freshness, and the
// per-connection routing handle used to reach them.
package registry

import (
	"fmt"
	"sync"

	"fleethq/pkg/clock"
	"fleethq/pkg/log"
	"fleethq/pkg/store"
	"fleethq/pkg/types"
)

var registryLog = log.WithComponent("registry")

// Handle is an opaque routing token for one worker's live connection. It is
// owned exclusively by the registry and never persisted to the state store.
type Handle interface {
	// Send delivers msg to the worker. Implementations must preserve
	// per-handle ordering: messages sent on the same Handle arrive in the
	// order they were sent.
	Send(msg any) error
}

// Registry is the C3 implementation. Routing handles live only in process
// memory; store mutations go through store.Store.
type Registry struct {
	store           store.Store
	clock           clock.Clock
	inactiveTimeout func() int64 // unused: Sweep takes the timeout in seconds as an argument

	mu       sync.Mutex
	handles  map[int64]Handle // workerId -> routing handle
	byHandle map[Handle]int64 // reverse index, for detach()
}

// New constructs a Registry over the given store and clock.
func New(s store.Store, c clock.Clock) *Registry {
	return &Registry{
		store:    s,
		clock:    c,
		handles:  make(map[int64]Handle),
		byHandle: make(map[Handle]int64),
	}
}

// Register purges any prior Worker with the same hostname (superseded by
// this connection), allocates a new Worker id, and persists it as active.
func (r *Registry) Register(hostname string, handle Handle) (int64, error) {
	if prior, err := r.store.GetWorkerByHostname(hostname); err == nil {
		r.forget(prior.ID)
		if err := r.store.DeleteWorker(prior.ID); err != nil {
			return 0, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
		}
	} else if err != store.ErrNotFound {
		return 0, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	id, err := r.store.NextWorkerID()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	now := r.clock.Now()
	w := &types.Worker{
		ID:            id,
		Hostname:      hostname,
		Status:        types.WorkerStatusActive,
		LastHeartbeat: now,
		CreatedAt:     now,
	}
	if err := r.store.CreateWorker(w); err != nil {
		return 0, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	r.mu.Lock()
	r.handles[id] = handle
	r.byHandle[handle] = id
	r.mu.Unlock()

	registryLog.Info().Int64("worker_id", id).Str("hostname", hostname).Msg("worker registered")
	return id, nil
}

// UpdateStatus refreshes status, load and lastHeartbeat. It fails if the
// worker id is unknown.
func (r *Registry) UpdateStatus(workerID int64, status types.WorkerStatus, load types.Load) error {
	w, err := r.store.GetWorker(workerID)
	if err == store.ErrNotFound {
		return fmt.Errorf("%w: unknown worker %d", types.ErrProtocolError, workerID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	w.Status = status
	w.Load = load
	w.LastHeartbeat = r.clock.Now()
	if err := r.store.UpdateWorker(w); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	return nil
}

// Detach is called on transport disconnect; it removes the Worker entirely.
func (r *Registry) Detach(handle Handle) error {
	r.mu.Lock()
	id, ok := r.byHandle[handle]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	r.forget(id)
	if err := r.store.DeleteWorker(id); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	registryLog.Info().Int64("worker_id", id).Msg("worker detached")
	return nil
}

func (r *Registry) forget(workerID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[workerID]; ok {
		delete(r.handles, workerID)
		delete(r.byHandle, h)
	}
}

// Sweep removes every Worker whose heartbeat is older than inactiveTimeout
// seconds, or whose status is already inactive. It returns the ids removed.
func (r *Registry) Sweep(inactiveTimeoutSeconds int64) ([]int64, error) {
	workers, err := r.store.ListWorkers()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	now := r.clock.Now()
	var removed []int64
	for _, w := range workers {
		stale := now.Sub(w.LastHeartbeat).Seconds() > float64(inactiveTimeoutSeconds)
		if stale || w.Status == types.WorkerStatusInactive {
			r.forget(w.ID)
			if err := r.store.DeleteWorker(w.ID); err != nil {
				return removed, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
			}
			removed = append(removed, w.ID)
		}
	}
	if len(removed) > 0 {
		registryLog.Info().Ints64("worker_ids", removed).Msg("swept inactive workers")
	}
	return removed, nil
}

// RouteTo delivers msg through workerID's routing handle. It fails fast
// with ErrWorkerUnreachable on a stale or missing handle; there is no
// retry.
func (r *Registry) RouteTo(workerID int64, msg any) error {
	r.mu.Lock()
	handle, ok := r.handles[workerID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: worker %d has no live handle", types.ErrWorkerUnreachable, workerID)
	}
	if err := handle.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", types.ErrWorkerUnreachable, err)
	}
	return nil
}
