package retry

import (
	"fmt"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
)

// ExhaustedError is returned when every attempt of a cycle failed. It wraps
// the last attempt's error; earlier errors are only seen by OnAttempt.
type ExhaustedError struct {
	Remote   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	if e.Remote != "" {
		return fmt.Sprintf("load %s: failed after %d attempts: %v", e.Remote, e.Attempts, e.Err)
	}
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Is reports the error as a load failure.
func (e *ExhaustedError) Is(target error) bool {
	return target == domain.ErrLoadFailed
}

// TimeoutError is the failure of an attempt that outlived the per-attempt
// timeout. The attempt's work is abandoned, not cancelled.
type TimeoutError struct {
	Attempt int
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("attempt %d timed out after %v", e.Attempt, e.After)
}

// Is reports the error as a timeout.
func (e *TimeoutError) Is(target error) bool {
	return target == domain.ErrTimeout
}
