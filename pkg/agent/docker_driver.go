package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DockerDriver is the production ContainerDriver. It shells out to the
// Docker CLI the way the rest of this pack's drivers shell out to their
// respective engines, rather than embedding a client library.
type DockerDriver struct{}

// NewDockerDriver constructs a DockerDriver.
func NewDockerDriver() *DockerDriver { return &DockerDriver{} }

func (d *DockerDriver) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("docker %s: %w (output: %s)", strings.Join(args, " "), err, string(out))
	}
	return string(out), nil
}

func (d *DockerDriver) Build(ctx context.Context, dir, tag string) error {
	_, err := d.run(ctx, "build", "-t", tag, dir)
	return err
}

func (d *DockerDriver) Run(ctx context.Context, name, tag string, env map[string]string, cpuCores float64, memoryBytes int64) error {
	args := []string{
		"run", "-d",
		"--name", name,
		"--restart", "unless-stopped",
		"--cpus", strconv.FormatFloat(cpuCores, 'f', -1, 64),
		"--memory", strconv.FormatInt(memoryBytes, 10),
	}
	for k, v := range env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, tag)
	_, err := d.run(ctx, args...)
	return err
}

func (d *DockerDriver) Stop(ctx context.Context, name string, grace int) error {
	_, err := d.run(ctx, "stop", "-t", strconv.Itoa(grace), name)
	return err
}

func (d *DockerDriver) Remove(ctx context.Context, name, tag string) error {
	_, _ = d.run(ctx, "rm", "-f", name)
	_, err := d.run(ctx, "rmi", "-f", tag)
	return err
}

type dockerStatsLine struct {
	CPUPerc string `json:"CPUPerc"`
	MemPerc string `json:"MemPerc"`
}

func (d *DockerDriver) Stats(ctx context.Context, name string) (ContainerStats, error) {
	out, err := d.run(ctx, "stats", "--no-stream", "--format", "{{json .}}", name)
	if err != nil {
		return ContainerStats{}, nil // container likely gone; not running
	}
	var line dockerStatsLine
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &line); err != nil {
		return ContainerStats{}, fmt.Errorf("parse docker stats: %w", err)
	}
	cpu, _ := strconv.ParseFloat(strings.TrimSuffix(line.CPUPerc, "%"), 64)
	mem, _ := strconv.ParseFloat(strings.TrimSuffix(line.MemPerc, "%"), 64)
	return ContainerStats{CPUPercent: cpu, MemoryPercent: mem, Running: true}, nil
}
