// Package types defines the core domain model shared by the orchestrator
// and the worker agent: workers, deployments, replicas and the assignments
// that tie them together. All identifiers are monotonic integers issued by
// the state store's per-entity counters.
package types
