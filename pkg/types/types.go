package types

import "time"

// WorkerStatus is the lifecycle state reported for a Worker.
type WorkerStatus string

const (
	WorkerStatusActive     WorkerStatus = "active"
	WorkerStatusBusy       WorkerStatus = "busy"
	WorkerStatusOverloaded WorkerStatus = "overloaded"
	WorkerStatusInactive   WorkerStatus = "inactive"
)

// Load is the telemetry a worker self-reports on every heartbeat.
type Load struct {
	CPUUsage          float64 `json:"cpuUsage"`
	MemoryUsage       float64 `json:"memoryUsage"`
	RunningContainers int     `json:"runningContainers"`
}

// Worker is a registered node that builds and runs replicas.
type Worker struct {
	ID            int64        `json:"id"`
	Hostname      string       `json:"hostname"`
	Status        WorkerStatus `json:"status"`
	LastHeartbeat time.Time    `json:"lastHeartbeat"`
	Load          Load         `json:"load"`
	CreatedAt     time.Time    `json:"createdAt"`

	// ConnectionHandle is never persisted to the state store. The registry
	// does not set it: it keeps each worker's routing handle in its own
	// in-memory map, replaced on every registration/reconnect.
	ConnectionHandle string `json:"-"`
}

// DeploymentStatus is the lifecycle state of a Deployment.
type DeploymentStatus string

const (
	DeploymentStatusDeploying DeploymentStatus = "deploying"
	DeploymentStatusActive    DeploymentStatus = "active"
	DeploymentStatusFailed    DeploymentStatus = "failed"
)

// AssignmentStatus mirrors the replica's status as tracked inside a
// deployment's assignment list.
type AssignmentStatus string

const (
	AssignmentStatusPending  AssignmentStatus = "pending"
	AssignmentStatusActive   AssignmentStatus = "active"
	AssignmentStatusFailed   AssignmentStatus = "failed"
	AssignmentStatusRemoving AssignmentStatus = "removing"
)

// Assignment records where one replica of a deployment lives.
type Assignment struct {
	WorkerID      int64            `json:"workerId"`
	ReplicaNumber int              `json:"replicaNumber"`
	Status        AssignmentStatus `json:"status"`
}

// Deployment is the logical record of "run repository R as N-M replicas".
type Deployment struct {
	ID            int64            `json:"id"`
	RepoRef       string           `json:"repoRef"`
	Owner         string           `json:"owner"`
	MinReplicas   int              `json:"minReplicas"`
	MaxReplicas   int              `json:"maxReplicas"`
	Status        DeploymentStatus `json:"status"`
	LastScaleUp   *time.Time       `json:"lastScaleUp,omitempty"`
	LastScaleDown *time.Time       `json:"lastScaleDown,omitempty"`
	Assignments   []Assignment     `json:"assignments"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// ReplicaStatus is the lifecycle state of a single Replica.
type ReplicaStatus string

const (
	ReplicaStatusPending  ReplicaStatus = "pending"
	ReplicaStatusActive   ReplicaStatus = "active"
	ReplicaStatusFailed   ReplicaStatus = "failed"
	ReplicaStatusRemoving ReplicaStatus = "removing"
)

// ReplicaMetrics is the last reported per-replica telemetry.
type ReplicaMetrics struct {
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryUsage float64 `json:"memoryUsage"`
}

// Replica is one running instance of a deployment, numbered from 1 within
// its deployment.
type Replica struct {
	ID            int64          `json:"id"`
	DeploymentID  int64          `json:"deploymentId"`
	ReplicaNumber int            `json:"replicaNumber"`
	Status        ReplicaStatus  `json:"status"`
	Metrics       ReplicaMetrics `json:"metrics"`
	CreatedAt     time.Time      `json:"createdAt"`
}
