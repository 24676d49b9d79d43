package agent

import (
	"context"
	"os"
	"os/user"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"fleethq/pkg/clock"
	"fleethq/pkg/transport"
)

// Agent owns the worker side of one orchestrator connection: it registers,
// dispatches inbound deployRepository/removeReplica tasks to a Runner, and
// drives a Telemetry loop until the stream drops, at which point it
// reconnects with backoff (Design Notes §9, auto-reconnect per §6).
type Agent struct {
	hostname    string
	serverAddr  string
	containers  ContainerDriver
	repos       RepoDriver
	clock       clock.Clock
	workRoot    string
	startTime   time.Time
	currentUser string

	mu       sync.Mutex
	workerID int64
	running  map[string]struct{} // container names tracked for telemetry
}

// New constructs an Agent. serverAddr is the orchestrator's gRPC dial
// target, derived from MAIN_SERVER_URL (config.Agent.DialTarget).
func New(hostname, serverAddr string, containers ContainerDriver, repos RepoDriver, c clock.Clock, workRoot string) *Agent {
	return &Agent{
		hostname:    hostname,
		serverAddr:  serverAddr,
		containers:  containers,
		repos:       repos,
		clock:       c,
		workRoot:    workRoot,
		startTime:   c.Now(),
		currentUser: CurrentUser(),
		running:     map[string]struct{}{},
	}
}

// Run connects and serves until ctx is cancelled, reconnecting with a
// fixed backoff on every disconnect.
func (a *Agent) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := a.connectOnce(ctx); err != nil {
			agentLog.Warn().Err(err).Str("server", a.serverAddr).Msg("connection to orchestrator lost, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (a *Agent) connectOnce(ctx context.Context) error {
	conn, err := grpc.NewClient(a.serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	// connCtx ends when this connection does, stopping its telemetry loop.
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	client := transport.NewTransportClient(conn)
	regMsg := transport.RegisterWorker{
		Hostname:    a.hostname,
		StartTime:   a.startTime,
		CurrentUser: a.currentUser,
	}
	regStruct, err := transport.ToStruct(transport.TagRegisterWorker, regMsg)
	if err != nil {
		return err
	}
	stream, err := client.Connect(ctx, regStruct)
	if err != nil {
		return err
	}

	sender := &streamSender{client: client}
	runner := NewRunner(a.containers, a.repos, a.clock, sender, a.workRoot)

	for {
		in, err := stream.Recv()
		if err != nil {
			return err
		}
		tag, fields := transport.FromStruct(in)
		switch tag {
		case transport.TagWorkerRegistered:
			var reg transport.WorkerRegistered
			if err := transport.DecodeInto(fields, &reg); err != nil {
				agentLog.Error().Err(err).Msg("malformed workerRegistered")
				continue
			}
			a.mu.Lock()
			a.workerID = reg.ID
			a.mu.Unlock()
			telemetry := NewTelemetry(reg.ID, a.containers, RuntimeSampler{}, a.clock, sender, a.trackedContainers)
			telemetry.Start(connCtx)
		case transport.TagDeployRepository:
			var msg transport.DeployRepository
			if err := transport.DecodeInto(fields, &msg); err != nil {
				agentLog.Error().Err(err).Msg("malformed deployRepository")
				continue
			}
			a.track(containerName(msg.DeploymentID, msg.ReplicaID))
			go runner.HandleDeployRepository(ctx, a.currentWorkerID(), msg)
		case transport.TagRemoveReplica:
			var msg transport.RemoveReplica
			if err := transport.DecodeInto(fields, &msg); err != nil {
				agentLog.Error().Err(err).Msg("malformed removeReplica")
				continue
			}
			a.untrack(containerName(msg.DeploymentID, msg.ReplicaID))
			go runner.HandleRemoveReplica(ctx, a.currentWorkerID(), msg)
		default:
			agentLog.Warn().Str("tag", string(tag)).Msg("unrecognized message tag")
		}
	}
}

func (a *Agent) currentWorkerID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.workerID
}

func (a *Agent) track(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running[name] = struct{}{}
}

func (a *Agent) untrack(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.running, name)
}

func (a *Agent) trackedContainers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.running))
	for n := range a.running {
		names = append(names, n)
	}
	return names
}

// streamSender carries the worker's outbound messages after registration
// over the unary Send RPC: the Connect stream only carries the worker's
// registerWorker request and, after that, orchestrator->worker pushes (see
// pkg/transport/service.go).
type streamSender struct {
	client transport.TransportClient
}

func (s *streamSender) Send(msg any) error {
	env, ok := msg.(*transport.Envelope)
	if !ok {
		return nil
	}
	st, err := transport.ToStruct(env.Tag, env.Payload)
	if err != nil {
		return err
	}
	_, err = s.client.Send(context.Background(), st)
	return err
}

// Hostname returns the local hostname, falling back to "unknown" (agents
// run inside minimal containers where os.Hostname can fail).
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// CurrentUser returns the name of the user running the agent process,
// falling back to "unknown" (minimal container images often lack an
// /etc/passwd entry for the running uid).
func CurrentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}
