// Package transport carries the orchestrator<->worker protocol (§6) over a
// single persistent, auto-reconnecting gRPC connection per worker. Wire
// messages are tagged JSON objects — a tagged variant with a typed handler
// table per Design Notes §9 — carried inside google.protobuf.Struct values
// so no .proto code generation is required.
package transport

import "time"

// Tag identifies which of the catalogue's message shapes an Envelope
// carries.
type Tag string

const (
	TagRegisterWorker   Tag = "registerWorker"
	TagWorkerRegistered Tag = "workerRegistered"
	TagWorkerStatus     Tag = "workerStatus"
	TagDeployRepository Tag = "deployRepository"
	TagDeploymentStatus Tag = "deploymentStatus"
	TagRemoveReplica    Tag = "removeReplica"
	TagReplicaRemoved   Tag = "replicaRemoved"
	TagError            Tag = "error"
)

// Envelope pairs a Tag with its typed payload. Payload is marshaled to/from
// a structpb.Struct by ToStruct/FromStruct.
type Envelope struct {
	Tag     Tag
	Payload any
}

// RegisterWorker is sent once, as the initial message on the Connect
// stream, to identify the connecting worker.
type RegisterWorker struct {
	Hostname    string    `json:"hostname"`
	StartTime   time.Time `json:"startTime"`
	CurrentUser string    `json:"currentUser"`
}

// WorkerRegistered acknowledges registration with the assigned worker id.
type WorkerRegistered struct {
	ID int64 `json:"id"`
}

// Load mirrors types.Load on the wire.
type Load struct {
	CPUUsage          float64 `json:"cpuUsage"`
	MemoryUsage       float64 `json:"memoryUsage"`
	RunningContainers int     `json:"runningContainers"`
}

// WorkerStatus is the periodic heartbeat a worker sends.
type WorkerStatus struct {
	WorkerID  int64     `json:"workerId"`
	Status    string    `json:"status"`
	Load      Load      `json:"load"`
	Timestamp time.Time `json:"timestamp"`
}

// DeployRepository instructs a worker to build and run one replica.
type DeployRepository struct {
	DeploymentDir  string    `json:"deploymentDir"`
	RepoURL        string    `json:"repoUrl"`
	ReplicaID      int       `json:"replicaId"` // aliases replicaNumber, see spec §9(b)
	DeploymentID   int64     `json:"deploymentId"`
	DeploymentTime time.Time `json:"deploymentTime"`
}

// Metrics mirrors types.ReplicaMetrics on the wire.
type Metrics struct {
	CPUUsage    float64 `json:"cpuUsage"`
	MemoryUsage float64 `json:"memoryUsage"`
}

// DeploymentStatus reports the outcome of a deploy task.
type DeploymentStatus struct {
	WorkerID     int64     `json:"workerId"`
	DeploymentID int64     `json:"deploymentId"`
	ReplicaID    int       `json:"replicaId"`
	Status       string    `json:"status"`
	Port         int       `json:"port,omitempty"`
	Metrics      *Metrics  `json:"metrics,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RemoveReplica instructs a worker to tear down one replica.
type RemoveReplica struct {
	DeploymentID int64 `json:"deploymentId"`
	ReplicaID    int   `json:"replicaId"`
}

// ReplicaRemoved acknowledges a completed teardown.
type ReplicaRemoved struct {
	WorkerID     int64     `json:"workerId"`
	DeploymentID int64     `json:"deploymentId"`
	ReplicaID    int       `json:"replicaId"`
	Timestamp    time.Time `json:"timestamp"`
}

// ErrorMessage is a fire-and-forget notice sent to a worker (O->W error).
type ErrorMessage struct {
	Message string `json:"message"`
}
