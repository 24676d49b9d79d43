package agent

import (
	"context"
	"runtime"
	"time"

	"fleethq/pkg/clock"
	"fleethq/pkg/transport"
)

const telemetryInterval = 15 * time.Second

// SystemSampler reports host-level load, decoupled from the container
// engine so tests can substitute a fixed reading.
type SystemSampler interface {
	SystemLoad() float64       // 0-100
	SystemMemoryUsage() float64 // 0-100
}

// RuntimeSampler is the production SystemSampler, derived from the Go
// runtime's own view of goroutine/memory pressure in lieu of a platform
// CPU-sampling dependency the pack does not carry.
type RuntimeSampler struct{}

func (RuntimeSampler) SystemLoad() float64 {
	return float64(runtime.NumGoroutine())
}

func (RuntimeSampler) SystemMemoryUsage() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Sys == 0 {
		return 0
	}
	return 100 * float64(m.Alloc) / float64(m.Sys)
}

// Telemetry periodically samples system + container load and reports a
// workerStatus envelope per §4.7's exact threshold formulas.
type Telemetry struct {
	workerID   int64
	containers ContainerDriver
	sampler    SystemSampler
	clock      clock.Clock
	sender     Sender

	tracked func() []string // active container names
	stopCh  chan struct{}
}

// NewTelemetry constructs a Telemetry loop. tracked returns the container
// names currently owned by this worker (for averaging per-container
// stats); it may return an empty slice.
func NewTelemetry(workerID int64, containers ContainerDriver, sampler SystemSampler, c clock.Clock, sender Sender, tracked func() []string) *Telemetry {
	return &Telemetry{workerID: workerID, containers: containers, sampler: sampler, clock: c, sender: sender, tracked: tracked, stopCh: make(chan struct{})}
}

func (t *Telemetry) Start(ctx context.Context) {
	ticker := time.NewTicker(telemetryInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.report(ctx)
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			}
		}
	}()
}

func (t *Telemetry) Stop() { close(t.stopCh) }

func (t *Telemetry) report(ctx context.Context) {
	systemLoad := t.sampler.SystemLoad()
	systemMem := t.sampler.SystemMemoryUsage()

	names := t.tracked()
	var cpuSum, memSum float64
	running := 0
	for _, name := range names {
		stats, err := t.containers.Stats(ctx, name)
		if err != nil || !stats.Running {
			continue
		}
		cpuSum += stats.CPUPercent
		memSum += stats.MemoryPercent
		running++
	}

	avgContainerCPU, avgContainerMem := 0.0, 0.0
	if running > 0 {
		avgContainerCPU = cpuSum / float64(running)
		avgContainerMem = memSum / float64(running)
	}

	cpu := max(systemLoad, avgContainerCPU)
	mem := max(systemMem, avgContainerMem)

	status := "active"
	switch {
	case cpu > 80 || mem > 90:
		status = "overloaded"
	case cpu > 60 || mem > 70:
		status = "busy"
	}

	_ = t.sender.Send(&transport.Envelope{
		Tag: transport.TagWorkerStatus,
		Payload: transport.WorkerStatus{
			WorkerID: t.workerID,
			Status:   status,
			Load: transport.Load{
				CPUUsage:          cpu,
				MemoryUsage:       mem,
				RunningContainers: running,
			},
			Timestamp: t.clock.Now(),
		},
	})
}
