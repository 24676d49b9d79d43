// Package orchestrator wires the Worker Registry (C3), Placement Engine
// (C4), Deployment Manager (C5), Scaling Controller (C6) and the transport
// and admin-API listeners into a single running process. It is the
// generalized, explicit-lifecycle replacement for the teacher's singleton
// `Manager` (Design Notes §5): one `New` call builds and starts every
// background loop, one `Shutdown` call tears them all down in reverse
// order.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"

	"fleethq/pkg/api"
	"fleethq/pkg/autoscaler"
	"fleethq/pkg/clock"
	"fleethq/pkg/config"
	"fleethq/pkg/deploy"
	"fleethq/pkg/events"
	"fleethq/pkg/log"
	"fleethq/pkg/metrics"
	"fleethq/pkg/placement"
	"fleethq/pkg/registry"
	"fleethq/pkg/repo"
	"fleethq/pkg/store"
	"fleethq/pkg/transport"
)

var orchestratorLog = log.WithComponent("orchestrator")

// Orchestrator owns every long-lived component of the central process: the
// state store, the worker transport, the admin HTTP surface, the scaling
// controller, the metrics collector and the registry sweep loop.
type Orchestrator struct {
	store store.Store

	broker   *events.Broker
	registry *registry.Registry
	deploy   *deploy.Manager
	scaler   *autoscaler.Controller

	collector *metrics.Collector

	grpcServer *grpc.Server
	grpcLis    net.Listener
	admin      *api.Server

	sweepInterval   time.Duration
	inactiveTimeout time.Duration
	sweepStop       chan struct{}
}

// New builds every C1-C6 component from cfg, starts the scaling controller,
// metrics collector, registry sweep loop, gRPC transport listener and admin
// HTTP surface, and returns the running Orchestrator. Callers must call
// Shutdown to release the listeners and background goroutines.
func New(cfg config.Orchestrator) (*Orchestrator, error) {
	s, err := openStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	realClock := clock.Real{}
	reg := registry.New(s, realClock)
	placementEngine := placement.New(s)
	validator := repo.New(cfg.GitHubAPIBase, cfg.ValidateTimeout)
	deployMgr := deploy.New(s, validator, placementEngine, reg, realClock, broker)
	scaler := autoscaler.New(s, placementEngine, reg, realClock, autoscaler.Config{
		CheckInterval:     cfg.CheckInterval,
		CPUThreshold:      cfg.CPUThreshold,
		ScaleUpCooldown:   cfg.ScaleUpCooldown,
		ScaleDownCooldown: cfg.ScaleDownCooldown,
	}, broker)
	scaler.Start()

	collector := metrics.NewCollector(s)
	collector.Start()

	o := &Orchestrator{
		store:           s,
		broker:          broker,
		registry:        reg,
		deploy:          deployMgr,
		scaler:          scaler,
		collector:       collector,
		sweepInterval:   cfg.SweepInterval,
		inactiveTimeout: cfg.InactiveTimeout,
		sweepStop:       make(chan struct{}),
	}
	o.startSweepLoop()

	grpcServer := grpc.NewServer()
	transport.RegisterTransportServer(grpcServer, transport.NewServer(reg, deployMgr, realClock))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		o.Shutdown(context.Background())
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}
	o.grpcServer = grpcServer
	o.grpcLis = lis
	go func() {
		orchestratorLog.Info().Str("addr", cfg.GRPCAddr).Msg("transport listening")
		if err := grpcServer.Serve(lis); err != nil {
			orchestratorLog.Error().Err(err).Msg("transport server stopped")
		}
	}()

	o.admin = api.NewServer(s, deployMgr, broker)
	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		if err := o.admin.Start(addr); err != nil {
			orchestratorLog.Error().Err(err).Msg("admin HTTP surface stopped")
		}
	}()

	return o, nil
}

// Shutdown stops the admin HTTP surface, the transport listener, the
// scaling controller, the metrics collector and the sweep loop, then
// closes the state store. It tears components down in the reverse order
// New started them.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if o.admin != nil {
		note(o.admin.Stop(ctx))
	}
	if o.grpcServer != nil {
		o.grpcServer.GracefulStop()
	}
	close(o.sweepStop)
	if o.collector != nil {
		o.collector.Stop()
	}
	if o.scaler != nil {
		o.scaler.Stop()
	}
	if o.broker != nil {
		o.broker.Stop()
	}
	if o.store != nil {
		note(o.store.Close())
	}

	return firstErr
}

func (o *Orchestrator) startSweepLoop() {
	ticker := time.NewTicker(o.sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := o.registry.Sweep(int64(o.inactiveTimeout.Seconds())); err != nil {
					orchestratorLog.Error().Err(err).Msg("worker sweep failed")
				}
			case <-o.sweepStop:
				return
			}
		}
	}()
}

func openStore(dataDir string) (store.Store, error) {
	if dataDir == "" {
		return store.NewMemory(), nil
	}
	return store.NewBolt(dataDir)
}
