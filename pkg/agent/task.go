package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fleethq/pkg/clock"
	"fleethq/pkg/log"
	"fleethq/pkg/transport"
)

var agentLog = log.WithComponent("agent")

const (
	buildAttempts = 3
	buildSpacing  = 5 * time.Second
	stopGrace     = 10

	defaultCPUCores    = 1.0
	defaultMemoryBytes = 512 * 1024 * 1024
	basePort           = 8000
)

type taskKey struct {
	deploymentID  int64
	replicaNumber int
}

// Sender is the outbound half of the worker's connection to the
// orchestrator (Design Notes §9 "Dynamic object/event bus").
type Sender interface {
	Send(msg any) error
}

// Runner executes deployRepository/removeReplica tasks against a
// ContainerDriver/RepoDriver pair. Each task is handled synchronously on
// its own goroutine; the deployment directory is owned exclusively by its
// (deploymentId, replicaNumber), so concurrent tasks never collide.
type Runner struct {
	containers ContainerDriver
	repos      RepoDriver
	clock      clock.Clock
	sender     Sender
	workRoot   string
	sleep      func(time.Duration)
}

// NewRunner constructs a Runner rooted at workRoot (DEPLOYMENT_PATH).
func NewRunner(containers ContainerDriver, repos RepoDriver, c clock.Clock, sender Sender, workRoot string) *Runner {
	return &Runner{containers: containers, repos: repos, clock: c, sender: sender, workRoot: workRoot, sleep: time.Sleep}
}

func (r *Runner) dir(key taskKey) string {
	return filepath.Join(r.workRoot, fmt.Sprintf("deployment-%d-%d", key.deploymentID, key.replicaNumber))
}

func imageTag(deploymentID int64, replicaNumber int) string {
	return fmt.Sprintf("app-%d:%d", deploymentID, replicaNumber)
}

func containerName(deploymentID int64, replicaNumber int) string {
	return fmt.Sprintf("app-%d-%d", deploymentID, replicaNumber)
}

// HandleDeployRepository runs the full idle→cloning→building→running→
// reporting state machine for one task (§4.7). It always reports a
// terminal deploymentStatus, win or lose.
func (r *Runner) HandleDeployRepository(ctx context.Context, workerID int64, msg transport.DeployRepository) {
	key := taskKey{deploymentID: msg.DeploymentID, replicaNumber: msg.ReplicaID}
	tag := imageTag(key.deploymentID, key.replicaNumber)
	name := containerName(key.deploymentID, key.replicaNumber)
	dir := r.dir(key)

	r.cleanup(ctx, name, tag, dir)

	if err := r.repos.CloneShallow(ctx, msg.RepoURL, dir); err != nil {
		r.reportFailed(workerID, key, fmt.Errorf("clone: %w", err))
		r.cleanup(ctx, name, tag, dir)
		return
	}

	if err := ensureBuildDescriptor(dir); err != nil {
		r.reportFailed(workerID, key, fmt.Errorf("build descriptor: %w", err))
		r.cleanup(ctx, name, tag, dir)
		return
	}

	var buildErr error
	for attempt := 1; attempt <= buildAttempts; attempt++ {
		buildErr = r.containers.Build(ctx, dir, tag)
		if buildErr == nil {
			break
		}
		agentLog.Warn().Err(buildErr).Str("tag", tag).Int("attempt", attempt).Msg("image build failed")
		if attempt < buildAttempts {
			r.sleep(buildSpacing)
		}
	}
	if buildErr != nil {
		r.reportFailed(workerID, key, fmt.Errorf("build: %w", buildErr))
		r.cleanup(ctx, name, tag, dir)
		return
	}

	port := basePort + key.replicaNumber
	env := map[string]string{"PORT": fmt.Sprintf("%d", port)}
	if err := r.containers.Run(ctx, name, tag, env, defaultCPUCores, defaultMemoryBytes); err != nil {
		r.reportFailed(workerID, key, fmt.Errorf("run: %w", err))
		r.cleanup(ctx, name, tag, dir)
		return
	}

	r.reportActive(workerID, key, port)
}

// HandleRemoveReplica implements §4.7's teardown path.
func (r *Runner) HandleRemoveReplica(ctx context.Context, workerID int64, msg transport.RemoveReplica) {
	key := taskKey{deploymentID: msg.DeploymentID, replicaNumber: msg.ReplicaID}
	tag := imageTag(key.deploymentID, key.replicaNumber)
	name := containerName(key.deploymentID, key.replicaNumber)
	dir := r.dir(key)

	if err := r.containers.Stop(ctx, name, stopGrace); err != nil {
		agentLog.Warn().Err(err).Str("container", name).Msg("stop failed during removal")
	}
	r.cleanup(ctx, name, tag, dir)

	_ = r.sender.Send(&transport.Envelope{
		Tag: transport.TagReplicaRemoved,
		Payload: transport.ReplicaRemoved{
			WorkerID:     workerID,
			DeploymentID: key.deploymentID,
			ReplicaID:    key.replicaNumber,
			Timestamp:    r.clock.Now(),
		},
	})
}

// cleanup is idempotent: it stops/removes whatever matches (deploymentId,
// replicaNumber) and deletes the working directory, tolerating a
// not-found driver error as a no-op.
func (r *Runner) cleanup(ctx context.Context, name, tag, dir string) {
	_ = r.containers.Remove(ctx, name, tag)
	_ = os.RemoveAll(dir)
}

func (r *Runner) reportActive(workerID int64, key taskKey, port int) {
	err := r.sender.Send(&transport.Envelope{
		Tag: transport.TagDeploymentStatus,
		Payload: transport.DeploymentStatus{
			WorkerID:     workerID,
			DeploymentID: key.deploymentID,
			ReplicaID:    key.replicaNumber,
			Status:       "active",
			Port:         port,
			Timestamp:    r.clock.Now(),
		},
	})
	if err != nil {
		agentLog.Error().Err(err).Msg("failed to report deploymentStatus(active)")
	}
}

func (r *Runner) reportFailed(workerID int64, key taskKey, cause error) {
	agentLog.Error().Err(cause).Int64("deployment_id", key.deploymentID).Int("replica_number", key.replicaNumber).Msg("task failed")
	err := r.sender.Send(&transport.Envelope{
		Tag: transport.TagDeploymentStatus,
		Payload: transport.DeploymentStatus{
			WorkerID:     workerID,
			DeploymentID: key.deploymentID,
			ReplicaID:    key.replicaNumber,
			Status:       "failed",
			Error:        cause.Error(),
			Timestamp:    r.clock.Now(),
		},
	})
	if err != nil {
		agentLog.Error().Err(err).Msg("failed to report deploymentStatus(failed)")
	}
}

const defaultDockerfile = `FROM python:3.11-slim
WORKDIR /app
COPY . .
RUN pip install --no-cache-dir -r requirements.txt
CMD ["python", "app.py"]
`

// ensureBuildDescriptor materializes a requirements.txt and Dockerfile if
// the cloned repository does not already supply them.
func ensureBuildDescriptor(dir string) error {
	reqPath := filepath.Join(dir, "requirements.txt")
	if _, err := os.Stat(reqPath); os.IsNotExist(err) {
		if err := os.WriteFile(reqPath, []byte(""), 0o644); err != nil {
			return err
		}
	}
	dockerfilePath := filepath.Join(dir, "Dockerfile")
	if _, err := os.Stat(dockerfilePath); os.IsNotExist(err) {
		if err := os.WriteFile(dockerfilePath, []byte(defaultDockerfile), 0o644); err != nil {
			return err
		}
	}
	return nil
}
