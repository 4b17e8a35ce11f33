package retry

import (
	"fmt"
	"math"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
)

// Policy is the retry policy of one remote.
type Policy = domain.RetryPolicy

// Defaults for remotes that do not configure retries.
const (
	DefaultMaxRetries    = 5
	DefaultBaseDelay     = 500 * time.Millisecond
	DefaultBackoffFactor = 1.6
)

// DefaultPolicy returns 5 retries starting at 500ms, growing by 1.6x, with no
// per-attempt timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    DefaultMaxRetries,
		BaseDelay:     DefaultBaseDelay,
		BackoffFactor: DefaultBackoffFactor,
	}
}

// Validate rejects policies AttemptLoad cannot run.
func Validate(p Policy) error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("base delay must be >= 0, got %v", p.BaseDelay)
	}
	if p.BackoffFactor <= 0 {
		return fmt.Errorf("backoff factor must be > 0, got %v", p.BackoffFactor)
	}
	if p.AttemptTimeout < 0 {
		return fmt.Errorf("attempt timeout must be >= 0, got %v", p.AttemptTimeout)
	}
	return nil
}

// Delay returns the wait before attempt n (1-based). The first attempt never
// waits; attempt n >= 2 waits round(BaseDelay_ms * BackoffFactor^(n-2)) ms.
func Delay(p Policy, attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	baseMs := float64(p.BaseDelay) / float64(time.Millisecond)
	ms := math.Round(baseMs * math.Pow(p.BackoffFactor, float64(attempt-2)))
	return time.Duration(ms) * time.Millisecond
}

// MaxAttempts is the number of loader invocations a cycle may make.
func MaxAttempts(p Policy) int {
	return p.MaxRetries + 1
}
