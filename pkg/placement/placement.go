// Package placement implements the Placement Engine (C4): it selects
// candidate workers for new replicas under capacity constraints.
// Selection is advisory — callers must cope with a selected worker
// becoming unreachable between selection and dispatch.
package placement

import (
	"sort"

	"fleethq/pkg/store"
	"fleethq/pkg/types"
)

const maxSchedulableCPU = 80.0

// Engine selects workers from the state store's current worker set.
type Engine struct {
	store store.Store
}

// New constructs a placement Engine over the given store.
func New(s store.Store) *Engine {
	return &Engine{store: s}
}

func (e *Engine) schedulable() ([]*types.Worker, error) {
	workers, err := e.store.ListWorkers()
	if err != nil {
		return nil, err
	}
	var ready []*types.Worker
	for _, w := range workers {
		if w.Status == types.WorkerStatusActive && w.Load.CPUUsage < maxSchedulableCPU {
			ready = append(ready, w)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Load.CPUUsage != ready[j].Load.CPUUsage {
			return ready[i].Load.CPUUsage < ready[j].Load.CPUUsage
		}
		return ready[i].LastHeartbeat.Before(ready[j].LastHeartbeat)
	})
	return ready, nil
}

// SelectWorkers returns up to n workers with status=active and
// cpuUsage<80%, sorted by ascending cpuUsage (ties by earlier
// lastHeartbeat).
func (e *Engine) SelectWorkers(n int) ([]*types.Worker, error) {
	ready, err := e.schedulable()
	if err != nil {
		return nil, err
	}
	if len(ready) > n {
		ready = ready[:n]
	}
	return ready, nil
}

// FindOne is the single-worker variant used on scale-up.
func (e *Engine) FindOne() (*types.Worker, bool, error) {
	ready, err := e.schedulable()
	if err != nil {
		return nil, false, err
	}
	if len(ready) == 0 {
		return nil, false, nil
	}
	return ready[0], true, nil
}
