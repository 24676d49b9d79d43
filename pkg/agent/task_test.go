package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleethq/pkg/clock"
	"fleethq/pkg/transport"
)

type fakeSender struct {
	sent []*transport.Envelope
}

func (f *fakeSender) Send(msg any) error {
	env, ok := msg.(*transport.Envelope)
	if ok {
		f.sent = append(f.sent, env)
	}
	return nil
}

func (f *fakeSender) last() *transport.Envelope {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func TestHandleDeployRepositoryReportsActiveOnSuccess(t *testing.T) {
	containers := NewFakeContainerDriver()
	repos := NewFakeRepoDriver()
	sender := &fakeSender{}
	c := clock.NewFake(time.Unix(0, 0))
	r := NewRunner(containers, repos, c, sender, t.TempDir())

	r.HandleDeployRepository(context.Background(), 7, transport.DeployRepository{
		DeploymentDir: "deployment-1-1",
		RepoURL:       "https://github.com/acme/app.git",
		ReplicaID:     1,
		DeploymentID:  1,
	})

	env := sender.last()
	require.NotNil(t, env)
	require.Equal(t, transport.TagDeploymentStatus, env.Tag)
	status := env.Payload.(transport.DeploymentStatus)
	require.Equal(t, "active", status.Status)
	require.Equal(t, 8001, status.Port)
	require.Contains(t, containers.built, "app-1:1")
	require.Contains(t, containers.ran, "app-1-1")
}

func TestHandleDeployRepositoryReportsFailedOnCloneError(t *testing.T) {
	containers := NewFakeContainerDriver()
	repos := NewFakeRepoDriver()
	repos.CloneFail["https://github.com/acme/broken.git"] = true
	sender := &fakeSender{}
	c := clock.NewFake(time.Unix(0, 0))
	r := NewRunner(containers, repos, c, sender, t.TempDir())

	r.HandleDeployRepository(context.Background(), 7, transport.DeployRepository{
		RepoURL:      "https://github.com/acme/broken.git",
		ReplicaID:    2,
		DeploymentID: 5,
	})

	env := sender.last()
	require.NotNil(t, env)
	status := env.Payload.(transport.DeploymentStatus)
	require.Equal(t, "failed", status.Status)
	require.NotEmpty(t, status.Error)
	require.Empty(t, containers.ran, "run must not be attempted after a clone failure")
}

func TestHandleDeployRepositoryRetriesBuildThreeTimes(t *testing.T) {
	containers := NewFakeContainerDriver()
	containers.BuildFail["app-2:1"] = true
	repos := NewFakeRepoDriver()
	sender := &fakeSender{}
	c := clock.NewFake(time.Unix(0, 0))
	r := NewRunner(containers, repos, c, sender, t.TempDir())
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }

	r.HandleDeployRepository(context.Background(), 1, transport.DeployRepository{
		RepoURL:      "https://github.com/acme/app.git",
		ReplicaID:    1,
		DeploymentID: 2,
	})

	require.Len(t, containers.built, buildAttempts)
	require.Equal(t, []time.Duration{buildSpacing, buildSpacing}, slept)

	env := sender.last()
	status := env.Payload.(transport.DeploymentStatus)
	require.Equal(t, "failed", status.Status)
}

func TestHandleRemoveReplicaEmitsReplicaRemoved(t *testing.T) {
	containers := NewFakeContainerDriver()
	repos := NewFakeRepoDriver()
	sender := &fakeSender{}
	c := clock.NewFake(time.Unix(0, 0))
	r := NewRunner(containers, repos, c, sender, t.TempDir())

	r.HandleRemoveReplica(context.Background(), 9, transport.RemoveReplica{DeploymentID: 3, ReplicaID: 2})

	env := sender.last()
	require.NotNil(t, env)
	require.Equal(t, transport.TagReplicaRemoved, env.Tag)
	removed := env.Payload.(transport.ReplicaRemoved)
	require.Equal(t, int64(9), removed.WorkerID)
	require.Equal(t, 2, removed.ReplicaID)
	require.Contains(t, containers.stopped, "app-3-2")
	require.Contains(t, containers.removed, "app-3-2")
}
