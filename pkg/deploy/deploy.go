// Package deploy implements the Deployment Manager (C5): it creates
// deployments, distributes initial replicas, records lifecycle
// transitions, and tears deployments down from the tail on scale-down.
package deploy

import (
	"context"
	"fmt"

	"fleethq/pkg/clock"
	"fleethq/pkg/events"
	"fleethq/pkg/log"
	"fleethq/pkg/metrics"
	"fleethq/pkg/placement"
	"fleethq/pkg/repo"
	"fleethq/pkg/store"
	"fleethq/pkg/transport"
	"fleethq/pkg/types"
)

var deployLog = log.WithComponent("deploy")

// Router is the subset of the Worker Registry the manager dispatches
// through.
type Router interface {
	RouteTo(workerID int64, msg any) error
}

// Manager is the C5 implementation.
type Manager struct {
	store     store.Store
	validator *repo.Validator
	placement *placement.Engine
	router    Router
	clock     clock.Clock
	broker    *events.Broker
}

// New constructs a Manager wired to its collaborators. broker may be nil.
func New(s store.Store, v *repo.Validator, p *placement.Engine, r Router, c clock.Clock, broker *events.Broker) *Manager {
	return &Manager{store: s, validator: v, placement: p, router: r, clock: c, broker: broker}
}

func (m *Manager) publish(t events.EventType, msg string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{Type: t, Message: msg})
}

// Create runs §4.5's Create algorithm: canonicalize, place, persist
// deploying assignments+replicas, dispatch deployRepository to each chosen
// worker, then flip to active (or failed on an unreachable dispatch).
func (m *Manager) Create(ctx context.Context, userRepoRef, owner string, minReplicas, maxReplicas int) (*types.Deployment, error) {
	canonicalURL, _, err := m.validator.Validate(ctx, userRepoRef)
	if err != nil {
		return nil, err
	}

	placementTimer := metrics.NewTimer()
	workers, err := m.placement.SelectWorkers(maxReplicas)
	placementTimer.ObserveDuration(metrics.PlacementLatency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	if len(workers) < minReplicas {
		return nil, fmt.Errorf("%w: need %d, have %d", types.ErrInsufficientWorkers, minReplicas, len(workers))
	}
	chosen := workers[:minReplicas]

	depID, err := m.store.NextDeploymentID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	now := m.clock.Now()
	d := &types.Deployment{
		ID:          depID,
		RepoRef:     canonicalURL,
		Owner:       owner,
		MinReplicas: minReplicas,
		MaxReplicas: maxReplicas,
		Status:      types.DeploymentStatusDeploying,
		CreatedAt:   now,
	}

	for i, w := range chosen {
		replicaNumber := i + 1
		d.Assignments = append(d.Assignments, types.Assignment{
			WorkerID:      w.ID,
			ReplicaNumber: replicaNumber,
			Status:        types.AssignmentStatusPending,
		})
	}
	if err := m.store.CreateDeployment(d); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	for i := range chosen {
		replicaID, err := m.store.NextReplicaID()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
		}
		r := &types.Replica{
			ID:            replicaID,
			DeploymentID:  depID,
			ReplicaNumber: i + 1,
			Status:        types.ReplicaStatusPending,
			CreatedAt:     now,
		}
		if err := m.store.CreateReplica(r); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
		}
	}

	dispatchFailed := false
	for i, w := range chosen {
		msg := &transport.Envelope{
			Tag: transport.TagDeployRepository,
			Payload: transport.DeployRepository{
				DeploymentDir:  fmt.Sprintf("deployment-%d-%d", depID, i+1),
				RepoURL:        canonicalURL,
				ReplicaID:      i + 1,
				DeploymentID:   depID,
				DeploymentTime: now,
			},
		}
		if err := m.router.RouteTo(w.ID, msg); err != nil {
			deployLog.Warn().Err(err).Int64("deployment_id", depID).Int64("worker_id", w.ID).Msg("deployRepository dispatch failed")
			metrics.DeployDispatchFailuresTotal.Inc()
			dispatchFailed = true
			// No rollback of already-delivered workers (§4.5 step 6, §7).
			break
		}
	}

	if dispatchFailed {
		d.Status = types.DeploymentStatusFailed
		m.publish(events.EventDeploymentFailed, fmt.Sprintf("deployment %d failed: worker unreachable during dispatch", depID))
	} else {
		d.Status = types.DeploymentStatusActive
		m.publish(events.EventDeploymentCreated, fmt.Sprintf("deployment %d active with %d replicas", depID, minReplicas))
	}
	if err := m.store.UpdateDeployment(d); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	return d, nil
}

// HandleStatusEvent applies a W->O deploymentStatus report: it updates the
// matching assignment's status by replicaNumber and the Replica's status
// and metrics. replicaNumber is the wire protocol's "replicaId" (§9 (b)).
func (m *Manager) HandleStatusEvent(deploymentID int64, replicaNumber int, status types.AssignmentStatus, metrics *types.ReplicaMetrics) error {
	d, err := m.store.GetDeployment(deploymentID)
	if err == store.ErrNotFound {
		return nil // unknown deployment: ignore, per §4.5
	}
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	for i := range d.Assignments {
		if d.Assignments[i].ReplicaNumber == replicaNumber {
			d.Assignments[i].Status = status
		}
	}
	if err := m.store.UpdateDeployment(d); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	replicas, err := m.store.ListReplicasByDeployment(deploymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	for _, r := range replicas {
		if r.ReplicaNumber != replicaNumber {
			continue
		}
		r.Status = types.ReplicaStatus(status)
		if metrics != nil {
			r.Metrics = *metrics
		}
		if err := m.store.UpdateReplica(r); err != nil {
			return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
		}
		if status == types.AssignmentStatusFailed {
			m.publish(events.EventReplicaFailed, fmt.Sprintf("deployment %d replica %d failed", deploymentID, replicaNumber))
		} else if status == types.AssignmentStatusActive {
			m.publish(events.EventReplicaActive, fmt.Sprintf("deployment %d replica %d active", deploymentID, replicaNumber))
		}
		break
	}
	return nil
}

// RemoveTail pops the highest-replicaNumber assignment, instructs its
// worker to remove the replica, and deletes the Replica entity.
func (m *Manager) RemoveTail(deploymentID int64) error {
	d, err := m.store.GetDeployment(deploymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	if len(d.Assignments) == 0 {
		return nil
	}

	tail := d.Assignments[len(d.Assignments)-1]
	d.Assignments = d.Assignments[:len(d.Assignments)-1]

	msg := &transport.Envelope{
		Tag: transport.TagRemoveReplica,
		Payload: transport.RemoveReplica{
			DeploymentID: deploymentID,
			ReplicaID:    tail.ReplicaNumber,
		},
	}
	if err := m.router.RouteTo(tail.WorkerID, msg); err != nil {
		deployLog.Warn().Err(err).Int64("deployment_id", deploymentID).Int("replica_number", tail.ReplicaNumber).Msg("removeReplica dispatch failed")
	}

	if err := m.store.UpdateDeployment(d); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	replicas, err := m.store.ListReplicasByDeployment(deploymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	for _, r := range replicas {
		if r.ReplicaNumber == tail.ReplicaNumber {
			if err := m.store.DeleteReplica(r.ID); err != nil {
				return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
			}
			break
		}
	}

	m.publish(events.EventReplicaRemoved, fmt.Sprintf("deployment %d replica %d removed", deploymentID, tail.ReplicaNumber))
	return nil
}
