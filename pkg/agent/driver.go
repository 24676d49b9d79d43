package agent

import "context"

// ContainerDriver abstracts the external container engine (Design Notes
// §9). The production implementation shells out to the Docker CLI; tests
// use FakeContainerDriver.
type ContainerDriver interface {
	Build(ctx context.Context, dir, tag string) error
	Run(ctx context.Context, name, tag string, env map[string]string, cpuCores float64, memoryBytes int64) error
	Stop(ctx context.Context, name string, grace int) error
	Remove(ctx context.Context, name, tag string) error
	Stats(ctx context.Context, name string) (ContainerStats, error)
}

// ContainerStats is the subset of engine telemetry the agent needs for
// workerStatus reporting.
type ContainerStats struct {
	CPUPercent    float64
	MemoryPercent float64
	Running       bool
}

// RepoDriver abstracts the version-control collaborator (Design Notes §9).
// The production implementation uses go-git; tests use FakeRepoDriver.
type RepoDriver interface {
	CloneShallow(ctx context.Context, url, dir string) error
}
