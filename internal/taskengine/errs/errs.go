// Package errs defines the engine's error taxonomy as sentinel errors
// checked with errors.Is.
package errs

import "errors"

var (
	// ErrQueueFull is reported when the InputQueue is saturated beyond
	// the configured retry budget.
	ErrQueueFull = errors.New("QUEUE_FULL")

	// ErrTaskExecutionFailed marks a user script that raised or returned
	// an invalid value; it never propagates as an engine error, only
	// tags the FAILED Result that carries it.
	ErrTaskExecutionFailed = errors.New("TASK_EXECUTION_FAILED")

	// ErrWorkerUnreachable is reported when an IPC round-trip to a
	// worker times out or the worker has died.
	ErrWorkerUnreachable = errors.New("WORKER_UNREACHABLE")

	// ErrSerializationFailed is reported when a task or result envelope
	// cannot be encoded.
	ErrSerializationFailed = errors.New("SERIALIZATION_FAILED")

	// ErrEngineNotRunning is reported when an API is called before start
	// or after shutdown.
	ErrEngineNotRunning = errors.New("ENGINE_NOT_RUNNING")

	// ErrTimeout marks a get_result deadline that expired; callers see
	// this only internally, as the public contract returns (nil, nil).
	ErrTimeout = errors.New("TIMEOUT")

	// ErrAlreadyRunning is returned by start() when the engine is
	// already Running.
	ErrAlreadyRunning = errors.New("engine already running")
)
