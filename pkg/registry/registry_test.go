package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fleethq/pkg/clock"
	"fleethq/pkg/store"
	"fleethq/pkg/types"
)

type fakeHandle struct {
	id   string
	sent []any
	fail bool
}

func (h *fakeHandle) Send(msg any) error {
	if h.fail {
		return errors.New("handle closed")
	}
	h.sent = append(h.sent, msg)
	return nil
}

func TestRegisterThenUpdateStatus(t *testing.T) {
	s := store.NewMemory()
	c := clock.NewFake(time.Unix(0, 0))
	r := New(s, c)

	id, err := r.Register("host-a", &fakeHandle{})
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	require.NoError(t, r.UpdateStatus(id, types.WorkerStatusBusy, types.Load{CPUUsage: 65}))

	w, err := s.GetWorker(id)
	require.NoError(t, err)
	require.Equal(t, types.WorkerStatusBusy, w.Status)
	require.Equal(t, 65.0, w.Load.CPUUsage)
}

func TestUpdateStatusUnknownWorkerFails(t *testing.T) {
	r := New(store.NewMemory(), clock.NewFake(time.Unix(0, 0)))
	err := r.UpdateStatus(999, types.WorkerStatusActive, types.Load{})
	require.Error(t, err)
}

// S4: reconnect from the same hostname supersedes the prior Worker id.
func TestReconnectSupersedesPriorWorkerID(t *testing.T) {
	s := store.NewMemory()
	c := clock.NewFake(time.Unix(0, 0))
	r := New(s, c)

	first, err := r.Register("host-a", &fakeHandle{})
	require.NoError(t, err)

	second, err := r.Register("host-a", &fakeHandle{})
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = s.GetWorker(first)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetWorkerByHostname("host-a")
	require.NoError(t, err)
	require.Equal(t, second, got.ID)
}

func TestSweepRemovesStaleWorkers(t *testing.T) {
	s := store.NewMemory()
	c := clock.NewFake(time.Unix(0, 0))
	r := New(s, c)

	id, err := r.Register("host-a", &fakeHandle{})
	require.NoError(t, err)

	c.Advance(3 * time.Minute)
	removed, err := r.Sweep(120)
	require.NoError(t, err)
	require.Equal(t, []int64{id}, removed)

	_, err = s.GetWorker(id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRouteToFailsFastOnMissingHandle(t *testing.T) {
	r := New(store.NewMemory(), clock.NewFake(time.Unix(0, 0)))
	err := r.RouteTo(42, "hello")
	require.Error(t, err)
}

func TestDetachRemovesWorker(t *testing.T) {
	s := store.NewMemory()
	r := New(s, clock.NewFake(time.Unix(0, 0)))
	h := &fakeHandle{}

	id, err := r.Register("host-a", h)
	require.NoError(t, err)

	require.NoError(t, r.Detach(h))
	_, err = s.GetWorker(id)
	require.ErrorIs(t, err, store.ErrNotFound)
}
