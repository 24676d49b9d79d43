// Package store defines the state-store contract (C1): a durable, shared
// map of workers, deployments and replicas plus monotonic id counters. Two
// implementations satisfy it — Memory, a mutex-guarded in-memory map, and
// Bolt, a durable bbolt-backed store — so a caller can swap backends
// without touching orchestrator logic.
package store

import (
	"errors"

	"fleethq/pkg/types"
)

// ErrNotFound is returned when a lookup by id or hostname misses.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence contract for C1. Every method either succeeds
// or returns an error a caller must treat as retriable (§7 StateStoreFailure)
// — implementations never silently swallow a failure.
type Store interface {
	NextWorkerID() (int64, error)
	CreateWorker(w *types.Worker) error
	GetWorker(id int64) (*types.Worker, error)
	GetWorkerByHostname(hostname string) (*types.Worker, error)
	ListWorkers() ([]*types.Worker, error)
	UpdateWorker(w *types.Worker) error
	DeleteWorker(id int64) error

	NextDeploymentID() (int64, error)
	CreateDeployment(d *types.Deployment) error
	GetDeployment(id int64) (*types.Deployment, error)
	ListDeployments() ([]*types.Deployment, error)
	UpdateDeployment(d *types.Deployment) error
	DeleteDeployment(id int64) error

	NextReplicaID() (int64, error)
	CreateReplica(r *types.Replica) error
	GetReplica(id int64) (*types.Replica, error)
	ListReplicasByDeployment(deploymentID int64) ([]*types.Replica, error)
	UpdateReplica(r *types.Replica) error
	DeleteReplica(id int64) error

	Close() error
}
