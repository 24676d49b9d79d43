package agent

import (
	"context"
	"sync"
)

// FakeContainerDriver is a deterministic, in-memory ContainerDriver for
// tests. BuildFail/RunFail key by tag/name let a test force a specific
// task into failure without touching the others.
type FakeContainerDriver struct {
	mu sync.Mutex

	BuildFail map[string]bool
	RunFail   map[string]bool
	StatsFor  map[string]ContainerStats

	built   []string
	ran     []string
	stopped []string
	removed []string
}

func NewFakeContainerDriver() *FakeContainerDriver {
	return &FakeContainerDriver{
		BuildFail: map[string]bool{},
		RunFail:   map[string]bool{},
		StatsFor:  map[string]ContainerStats{},
	}
}

func (f *FakeContainerDriver) Build(ctx context.Context, dir, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.built = append(f.built, tag)
	if f.BuildFail[tag] {
		return errBuildFailed
	}
	return nil
}

func (f *FakeContainerDriver) Run(ctx context.Context, name, tag string, env map[string]string, cpuCores float64, memoryBytes int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, name)
	if f.RunFail[name] {
		return errRunFailed
	}
	return nil
}

func (f *FakeContainerDriver) Stop(ctx context.Context, name string, grace int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *FakeContainerDriver) Remove(ctx context.Context, name, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	return nil
}

func (f *FakeContainerDriver) Stats(ctx context.Context, name string) (ContainerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.StatsFor[name]; ok {
		return s, nil
	}
	return ContainerStats{Running: true}, nil
}

// FakeRepoDriver is a deterministic RepoDriver for tests.
type FakeRepoDriver struct {
	mu        sync.Mutex
	CloneFail map[string]bool
	cloned    []string
}

func NewFakeRepoDriver() *FakeRepoDriver {
	return &FakeRepoDriver{CloneFail: map[string]bool{}}
}

func (f *FakeRepoDriver) CloneShallow(ctx context.Context, url, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cloned = append(f.cloned, url)
	if f.CloneFail[url] {
		return errCloneFailed
	}
	return nil
}
