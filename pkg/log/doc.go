// Package log wraps zerolog with a global Logger, Init(Config), and a few
// component-scoped child-logger helpers used across the orchestrator and
// the worker agent.
package log
