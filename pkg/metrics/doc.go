// Package metrics exposes Prometheus gauges/counters/histograms for the
// orchestrator (worker/deployment/replica counts, placement latency,
// scaling actions, admin API latency) plus liveness/readiness/health HTTP
// handlers in the same shape the rest of the pack uses.
package metrics
