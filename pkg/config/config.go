// Package config loads the environment-driven configuration recognized by
// the orchestrator and worker agent binaries (§6 of the platform spec).
package config

import (
	"net/url"
	"os"
	"strconv"
	"time"
)

// Orchestrator holds the admin HTTP surface, transport and scaling tunables
// for the central orchestrator process.
type Orchestrator struct {
	Port int // admin HTTP port, default 3000

	DataDir  string // Bolt data directory; empty means in-memory store
	GRPCAddr string // transport listen address

	InactiveTimeout time.Duration // worker heartbeat staleness, default 2m
	SweepInterval   time.Duration // worker-registry sweep period, default 30s

	CheckInterval    time.Duration // scaling controller tick, default 30s
	CPUThreshold     float64       // scale-up threshold, default 70
	ScaleUpCooldown  time.Duration // default 300s
	ScaleDownCooldown time.Duration // default 600s

	GitHubAPIBase string        // default https://api.github.com
	ValidateTimeout time.Duration // repo validator HTTP timeout, default 5s
}

// LoadOrchestrator reads Orchestrator configuration from the environment,
// applying the defaults named in §6 where a variable is unset.
func LoadOrchestrator() Orchestrator {
	return Orchestrator{
		Port:              envInt("PORT", 3000),
		DataDir:           os.Getenv("DATA_DIR"),
		GRPCAddr:          envString("GRPC_ADDR", ":7000"),
		InactiveTimeout:   envDuration("INACTIVE_TIMEOUT", 2*time.Minute),
		SweepInterval:     envDuration("SWEEP_INTERVAL", 30*time.Second),
		CheckInterval:     envDuration("CHECK_INTERVAL", 30*time.Second),
		CPUThreshold:      envFloat("CPU_THRESHOLD", 70),
		ScaleUpCooldown:   envDuration("SCALE_UP_COOLDOWN", 300*time.Second),
		ScaleDownCooldown: envDuration("SCALE_DOWN_COOLDOWN", 600*time.Second),
		GitHubAPIBase:     envString("GITHUB_API_BASE", "https://api.github.com"),
		ValidateTimeout:   envDuration("VALIDATE_TIMEOUT", 5*time.Second),
	}
}

// Agent holds the worker agent's environment-driven configuration.
type Agent struct {
	DeploymentPath string // worker-side working root, default ./deployments

	// MainServerURL is the orchestrator address the worker dials, read
	// from MAIN_SERVER_URL exactly per §6. The gRPC redesign (§6.1) moves
	// the transport off the admin HTTP port, so the default authority
	// here is the orchestrator's default GRPCAddr (":7000"), not its
	// admin port (3000); DialTarget extracts the host:port gRPC wants.
	MainServerURL string

	Hostname string // defaults to os.Hostname()
}

// LoadAgent reads Agent configuration from the environment.
func LoadAgent() Agent {
	hostname, _ := os.Hostname()
	return Agent{
		DeploymentPath: envString("DEPLOYMENT_PATH", "./deployments"),
		MainServerURL:  envString("MAIN_SERVER_URL", "http://localhost:7000"),
		Hostname:       envString("HOSTNAME", hostname),
	}
}

// DialTarget returns the host:port gRPC should dial, stripping the scheme
// from MainServerURL. Falls back to the raw value if it doesn't parse as a
// URL with a host component (e.g. an operator set it to a bare host:port).
func (a Agent) DialTarget() string {
	u, err := url.Parse(a.MainServerURL)
	if err != nil || u.Host == "" {
		return a.MainServerURL
	}
	return u.Host
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
