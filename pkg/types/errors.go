package types

import "errors"

// Error taxonomy (§7). User-facing failures are returned synchronously with
// one of these as the wrapped cause; background failures (scaling
// controller, sweeps) are logged and the loop continues on the next tick.
//
// These live in the domain package rather than a dedicated errors package
// so that pkg/orchestrator can wire registry/deploy/transport/etc into its
// facade without an import cycle back through their shared error sentinels.
var (
	// ErrInvalidRepository means the repo does not exist or could not be
	// canonicalized.
	ErrInvalidRepository = errors.New("invalid repository")

	// ErrInsufficientWorkers means the placement engine returned fewer
	// workers than minReplicas.
	ErrInsufficientWorkers = errors.New("insufficient workers")

	// ErrWorkerUnreachable means the routing handle was gone between
	// selection and dispatch.
	ErrWorkerUnreachable = errors.New("worker unreachable")

	// ErrStateStoreFailure is retriable; callers surface it as a 5xx.
	ErrStateStoreFailure = errors.New("state store failure")

	// ErrWorkerTaskFailed is recorded when a worker reports
	// deploymentStatus{status=failed}. The orchestrator does not auto-retry.
	ErrWorkerTaskFailed = errors.New("worker task failed")

	// ErrProtocolError marks a malformed message; it is logged and ignored.
	ErrProtocolError = errors.New("protocol error")
)
