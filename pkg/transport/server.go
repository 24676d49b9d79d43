package transport

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"fleethq/pkg/clock"
	"fleethq/pkg/log"
	"fleethq/pkg/registry"
	"fleethq/pkg/types"
)

var serverLog = log.WithComponent("transport")

// StatusUpdater is the subset of the Worker Registry the server needs.
type StatusUpdater interface {
	UpdateStatus(workerID int64, status types.WorkerStatus, load types.Load) error
	Register(hostname string, handle registry.Handle) (int64, error)
	Detach(handle registry.Handle) error
}

// DeploymentEventHandler is the subset of the Deployment Manager the server
// needs to forward deploymentStatus/replicaRemoved events to.
type DeploymentEventHandler interface {
	HandleStatusEvent(deploymentID int64, replicaNumber int, status types.AssignmentStatus, metrics *types.ReplicaMetrics) error
}

// Server implements TransportServer, translating gRPC traffic into Worker
// Registry and Deployment Manager calls.
type Server struct {
	registry StatusUpdater
	deploy   DeploymentEventHandler
	clock    clock.Clock
}

// NewServer constructs a Server wired to the given registry and deployment
// manager.
func NewServer(reg StatusUpdater, depl DeploymentEventHandler, c clock.Clock) *Server {
	return &Server{registry: reg, deploy: depl, clock: c}
}

// connHandle adapts one worker's Connect stream into a registry.Handle,
// serializing sends so per-worker message order is preserved.
type connHandle struct {
	mu     sync.Mutex
	stream Transport_ConnectServer
}

func (h *connHandle) Send(msg any) error {
	env, ok := msg.(*Envelope)
	if !ok {
		return fmt.Errorf("transport: unsupported message type %T", msg)
	}
	st, err := ToStruct(env.Tag, env.Payload)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stream.Send(st)
}

// Connect is the O->W push stream. The worker's registerWorker envelope
// arrives as the single request value; the orchestrator then pushes
// workerRegistered, deployRepository, removeReplica and error messages for
// the stream's lifetime.
func (s *Server) Connect(in *structpb.Struct, stream Transport_ConnectServer) error {
	tag, fields := FromStruct(in)
	if tag != TagRegisterWorker {
		return fmt.Errorf("%w: expected registerWorker, got %q", types.ErrProtocolError, tag)
	}
	var reg RegisterWorker
	if err := DecodeInto(fields, &reg); err != nil {
		return fmt.Errorf("%w: %v", types.ErrProtocolError, err)
	}

	handle := &connHandle{stream: stream}

	id, err := s.registry.Register(reg.Hostname, handle)
	if err != nil {
		return err
	}

	serverLog.Info().
		Int64("worker_id", id).
		Str("hostname", reg.Hostname).
		Time("worker_start_time", reg.StartTime).
		Str("current_user", reg.CurrentUser).
		Msg("worker registered")

	if err := handle.Send(&Envelope{Tag: TagWorkerRegistered, Payload: WorkerRegistered{ID: id}}); err != nil {
		_ = s.registry.Detach(handle)
		return err
	}

	<-stream.Context().Done()
	_ = s.registry.Detach(handle)
	return stream.Context().Err()
}

// Send is the W->O unary path: registerWorker is handled via Connect, so
// this only carries workerStatus, deploymentStatus and replicaRemoved.
func (s *Server) Send(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	tag, fields := FromStruct(in)

	switch tag {
	case TagWorkerStatus:
		var msg WorkerStatus
		if err := DecodeInto(fields, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrProtocolError, err)
		}
		load := types.Load{
			CPUUsage:          msg.Load.CPUUsage,
			MemoryUsage:       msg.Load.MemoryUsage,
			RunningContainers: msg.Load.RunningContainers,
		}
		if err := s.registry.UpdateStatus(msg.WorkerID, types.WorkerStatus(msg.Status), load); err != nil {
			serverLog.Warn().Err(err).Int64("worker_id", msg.WorkerID).Msg("workerStatus rejected")
		}

	case TagDeploymentStatus:
		var msg DeploymentStatus
		if err := DecodeInto(fields, &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrProtocolError, err)
		}
		var metrics *types.ReplicaMetrics
		if msg.Metrics != nil {
			metrics = &types.ReplicaMetrics{CPUUsage: msg.Metrics.CPUUsage, MemoryUsage: msg.Metrics.MemoryUsage}
		}
		if err := s.deploy.HandleStatusEvent(msg.DeploymentID, msg.ReplicaID, types.AssignmentStatus(msg.Status), metrics); err != nil {
			serverLog.Warn().Err(err).Int64("deployment_id", msg.DeploymentID).Msg("deploymentStatus rejected")
		}

	case TagReplicaRemoved:
		// No orchestrator-side state depends on this ack; the Replica was
		// already deleted when removeReplica was dispatched (§4.5).

	default:
		serverLog.Warn().Str("tag", string(tag)).Msg("protocol error: unrecognized message tag")
		return nil, fmt.Errorf("%w: unrecognized tag %q", types.ErrProtocolError, tag)
	}

	return &emptypb.Empty{}, nil
}
