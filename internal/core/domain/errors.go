package domain

import "errors"

var (
	// ErrLoadFailed marks a load cycle whose retries were exhausted.
	ErrLoadFailed = errors.New("remote load failed")

	// ErrTimeout marks an attempt abandoned after its per-attempt timeout.
	ErrTimeout = errors.New("remote load attempt timed out")

	// ErrInvalidExport is returned when a loaded module has neither a default
	// export nor a bare component export.
	ErrInvalidExport = errors.New("remote module has no renderable export")

	// ErrRenderPanic marks a panic recovered while rendering a remote.
	ErrRenderPanic = errors.New("remote panicked during render")

	// ErrRemoteUnavailable is returned by transports for non-success responses.
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

// FailureKind is the failure taxonomy shown to users and used as a metric label.
type FailureKind string

const (
	FailureLoad    FailureKind = "load"
	FailureTimeout FailureKind = "timeout"
	FailureRender  FailureKind = "render"
)

// Classify maps an error reaching a failure boundary to its kind. Load and
// timeout failures are retried inside the loader; render failures need an
// explicit reset.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidExport), errors.Is(err, ErrRenderPanic):
		return FailureRender
	case errors.Is(err, ErrTimeout):
		return FailureTimeout
	case errors.Is(err, ErrLoadFailed), errors.Is(err, ErrRemoteUnavailable):
		return FailureLoad
	default:
		return FailureRender
	}
}
