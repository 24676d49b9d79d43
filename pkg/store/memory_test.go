package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fleethq/pkg/types"
)

func TestMemoryWorkerLifecycle(t *testing.T) {
	s := NewMemory()

	id, err := s.NextWorkerID()
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	w := &types.Worker{ID: id, Hostname: "host-a", Status: types.WorkerStatusActive}
	require.NoError(t, s.CreateWorker(w))

	got, err := s.GetWorkerByHostname("host-a")
	require.NoError(t, err)
	require.Equal(t, id, got.ID)

	require.NoError(t, s.DeleteWorker(id))
	_, err = s.GetWorker(id)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetWorkerByHostname("host-a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeploymentClonesOnRead(t *testing.T) {
	s := NewMemory()
	d := &types.Deployment{ID: 1, Assignments: []types.Assignment{{WorkerID: 1, ReplicaNumber: 1}}}
	require.NoError(t, s.CreateDeployment(d))

	got, err := s.GetDeployment(1)
	require.NoError(t, err)
	got.Assignments[0].ReplicaNumber = 99

	again, err := s.GetDeployment(1)
	require.NoError(t, err)
	require.Equal(t, 1, again.Assignments[0].ReplicaNumber)
}

func TestMemoryReplicasByDeployment(t *testing.T) {
	s := NewMemory()
	require.NoError(t, s.CreateReplica(&types.Replica{ID: 1, DeploymentID: 10, ReplicaNumber: 1}))
	require.NoError(t, s.CreateReplica(&types.Replica{ID: 2, DeploymentID: 10, ReplicaNumber: 2}))
	require.NoError(t, s.CreateReplica(&types.Replica{ID: 3, DeploymentID: 11, ReplicaNumber: 1}))

	list, err := s.ListReplicasByDeployment(10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, s.DeleteReplica(1))
	list, err = s.ListReplicasByDeployment(10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
