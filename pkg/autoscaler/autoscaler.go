// Package autoscaler implements the Scaling Controller (C6): a periodic
// control loop that computes average CPU load per active deployment and
// emits scale-up/scale-down actions under cooldowns and replica bounds.
package autoscaler

import (
	"fmt"
	"time"

	"fleethq/pkg/clock"
	"fleethq/pkg/events"
	"fleethq/pkg/log"
	"fleethq/pkg/metrics"
	"fleethq/pkg/placement"
	"fleethq/pkg/store"
	"fleethq/pkg/transport"
	"fleethq/pkg/types"
)

var autoscalerLog = log.WithComponent("autoscaler")

// Router is the subset of the Worker Registry the controller dispatches
// through.
type Router interface {
	RouteTo(workerID int64, msg any) error
}

// Config holds the tunables from §4.6, all overridable via pkg/config.
type Config struct {
	CheckInterval     time.Duration
	CPUThreshold      float64
	ScaleUpCooldown   time.Duration
	ScaleDownCooldown time.Duration
}

// DefaultConfig matches §4.6's defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:     30 * time.Second,
		CPUThreshold:      70,
		ScaleUpCooldown:   300 * time.Second,
		ScaleDownCooldown: 600 * time.Second,
	}
}

// Controller is the C6 implementation. Its tick period is driver-injected
// (Design Notes §9) so tests can call Tick directly without sleeping.
type Controller struct {
	store     store.Store
	placement *placement.Engine
	router    Router
	clock     clock.Clock
	cfg       Config
	broker    *events.Broker

	stopCh chan struct{}
}

// New constructs a Controller wired to its collaborators. broker may be nil.
func New(s store.Store, p *placement.Engine, r Router, c clock.Clock, cfg Config, broker *events.Broker) *Controller {
	return &Controller{store: s, placement: p, router: r, clock: c, cfg: cfg, broker: broker, stopCh: make(chan struct{})}
}

// Start runs the control loop on a ticker until Stop is called.
func (c *Controller) Start() {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Tick()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop ends the control loop.
func (c *Controller) Stop() {
	close(c.stopCh)
}

// Tick runs one control loop pass over every active deployment. Background
// failures are logged and do not halt the pass over remaining deployments
// (§7).
func (c *Controller) Tick() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ScalingTickDuration)

	deployments, err := c.store.ListDeployments()
	if err != nil {
		autoscalerLog.Error().Err(err).Msg("failed to list deployments for scaling tick")
		return
	}

	for _, d := range deployments {
		if d.Status != types.DeploymentStatusActive {
			continue
		}
		if err := c.evaluate(d); err != nil {
			autoscalerLog.Error().Err(err).Int64("deployment_id", d.ID).Msg("scaling evaluation failed")
		}
	}
}

func (c *Controller) evaluate(d *types.Deployment) error {
	replicas, err := c.store.ListReplicasByDeployment(d.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	var active []*types.Replica
	for _, r := range replicas {
		if r.Status == types.ReplicaStatusActive {
			active = append(active, r)
		}
	}

	avgCPU := 0.0
	if len(active) > 0 {
		var sum float64
		for _, r := range active {
			sum += r.Metrics.CPUUsage
		}
		avgCPU = sum / float64(len(active))
	}

	now := c.clock.Now()

	canScaleUp := avgCPU > c.cfg.CPUThreshold &&
		len(d.Assignments) < d.MaxReplicas &&
		(d.LastScaleUp == nil || now.Sub(*d.LastScaleUp) > c.cfg.ScaleUpCooldown)
	if canScaleUp {
		return c.scaleUp(d, now)
	}

	canScaleDown := avgCPU < c.cfg.CPUThreshold/2 &&
		len(d.Assignments) > d.MinReplicas &&
		(d.LastScaleDown == nil || now.Sub(*d.LastScaleDown) > c.cfg.ScaleDownCooldown)
	if canScaleDown {
		return c.scaleDown(d, now)
	}

	return nil
}

func (c *Controller) scaleUp(d *types.Deployment, now time.Time) error {
	worker, ok, err := c.placement.FindOne()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	if !ok {
		return nil // no worker available this tick; try again next tick
	}

	replicaNumber := len(d.Assignments) + 1
	replicaID, err := c.store.NextReplicaID()
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	r := &types.Replica{
		ID:            replicaID,
		DeploymentID:  d.ID,
		ReplicaNumber: replicaNumber,
		Status:        types.ReplicaStatusPending,
		CreatedAt:     now,
	}
	if err := c.store.CreateReplica(r); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	d.Assignments = append(d.Assignments, types.Assignment{
		WorkerID:      worker.ID,
		ReplicaNumber: replicaNumber,
		Status:        types.AssignmentStatusPending,
	})
	lastScaleUp := now
	d.LastScaleUp = &lastScaleUp
	if err := c.store.UpdateDeployment(d); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	msg := &transport.Envelope{
		Tag: transport.TagDeployRepository,
		Payload: transport.DeployRepository{
			DeploymentDir:  fmt.Sprintf("deployment-%d-%d", d.ID, replicaNumber),
			RepoURL:        d.RepoRef,
			ReplicaID:      replicaNumber,
			DeploymentID:   d.ID,
			DeploymentTime: now,
		},
	}
	if err := c.router.RouteTo(worker.ID, msg); err != nil {
		autoscalerLog.Warn().Err(err).Int64("deployment_id", d.ID).Msg("scale-up dispatch failed")
	}

	metrics.ScaleActionsTotal.WithLabelValues("up").Inc()
	if c.broker != nil {
		c.broker.Publish(&events.Event{Type: events.EventScaleUp, Message: fmt.Sprintf("deployment %d scaled up to %d replicas", d.ID, len(d.Assignments))})
	}
	return nil
}

func (c *Controller) scaleDown(d *types.Deployment, now time.Time) error {
	tail := d.Assignments[len(d.Assignments)-1]
	d.Assignments = d.Assignments[:len(d.Assignments)-1]
	lastScaleDown := now
	d.LastScaleDown = &lastScaleDown

	msg := &transport.Envelope{
		Tag: transport.TagRemoveReplica,
		Payload: transport.RemoveReplica{
			DeploymentID: d.ID,
			ReplicaID:    tail.ReplicaNumber,
		},
	}
	if err := c.router.RouteTo(tail.WorkerID, msg); err != nil {
		autoscalerLog.Warn().Err(err).Int64("deployment_id", d.ID).Msg("scale-down dispatch failed")
	}

	if err := c.store.UpdateDeployment(d); err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}

	replicas, err := c.store.ListReplicasByDeployment(d.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
	}
	for _, r := range replicas {
		if r.ReplicaNumber == tail.ReplicaNumber {
			if err := c.store.DeleteReplica(r.ID); err != nil {
				return fmt.Errorf("%w: %v", types.ErrStateStoreFailure, err)
			}
			break
		}
	}

	metrics.ScaleActionsTotal.WithLabelValues("down").Inc()
	if c.broker != nil {
		c.broker.Publish(&events.Event{Type: events.EventScaleDown, Message: fmt.Sprintf("deployment %d scaled down to %d replicas", d.ID, len(d.Assignments))})
	}
	return nil
}
