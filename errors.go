package reactor

import "errors"

// Sentinel errors returned by the public API. Callers that need to
// distinguish a specific failure should use errors.Is against these.
var (
	// ErrWatcherActive is returned by StartIO/StartTimer when the watcher
	// passed in is already registered with a loop.
	ErrWatcherActive = errors.New("reactor: watcher already active")

	// ErrInvalidWatcher is returned when a watcher is missing required
	// fields (no callback, negative fd, negative delay, ...).
	ErrInvalidWatcher = errors.New("reactor: invalid watcher configuration")

	// ErrLoopClosed names the "loop closed" condition. No Loop method
	// returns it: operations after Close are not checked.
	ErrLoopClosed = errors.New("reactor: loop closed")

	// ErrBackendFatal wraps an unrecoverable error surfaced by the
	// readiness backend (a Wait or Modify failure outside the documented
	// recovery table). Run returns this error and stops the loop.
	ErrBackendFatal = errors.New("reactor: backend fatal error")
)

// fatalBackendError wraps a raw syscall error so Run can report it
// without losing the underlying errno for logging/inspection.
type fatalBackendError struct {
	op  string
	err error
}

func (e *fatalBackendError) Error() string {
	return "reactor: backend " + e.op + ": " + e.err.Error()
}

func (e *fatalBackendError) Unwrap() error { return ErrBackendFatal }

func (e *fatalBackendError) Cause() error { return e.err }
