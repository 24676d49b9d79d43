package placement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleethq/pkg/store"
	"fleethq/pkg/types"
)

func seedWorker(t *testing.T, s store.Store, id int64, status types.WorkerStatus, cpu float64, hb time.Time) {
	t.Helper()
	require.NoError(t, s.CreateWorker(&types.Worker{
		ID:            id,
		Hostname:      "host",
		Status:        status,
		Load:          types.Load{CPUUsage: cpu},
		LastHeartbeat: hb,
	}))
}

func TestSelectWorkersOrdersByAscendingCPU(t *testing.T) {
	s := store.NewMemory()
	now := time.Now()
	seedWorker(t, s, 1, types.WorkerStatusActive, 50, now)
	seedWorker(t, s, 2, types.WorkerStatusActive, 10, now)
	seedWorker(t, s, 3, types.WorkerStatusActive, 30, now)

	e := New(s)
	got, err := e.SelectWorkers(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(2), got[0].ID)
	require.Equal(t, int64(3), got[1].ID)
}

func TestSelectWorkersExcludesOverloadedAndInactive(t *testing.T) {
	s := store.NewMemory()
	now := time.Now()
	seedWorker(t, s, 1, types.WorkerStatusActive, 85, now)
	seedWorker(t, s, 2, types.WorkerStatusInactive, 10, now)
	seedWorker(t, s, 3, types.WorkerStatusActive, 20, now)

	e := New(s)
	got, err := e.SelectWorkers(5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(3), got[0].ID)
}

func TestSelectWorkersTiesBrokenByEarlierHeartbeat(t *testing.T) {
	s := store.NewMemory()
	older := time.Now().Add(-time.Minute)
	newer := time.Now()
	seedWorker(t, s, 1, types.WorkerStatusActive, 20, newer)
	seedWorker(t, s, 2, types.WorkerStatusActive, 20, older)

	e := New(s)
	got, err := e.SelectWorkers(2)
	require.NoError(t, err)
	require.Equal(t, int64(2), got[0].ID)
}

func TestFindOneReturnsFalseWhenNoneAvailable(t *testing.T) {
	e := New(store.NewMemory())
	_, ok, err := e.FindOne()
	require.NoError(t, err)
	require.False(t, ok)
}
