package retry

import "time"

// Clock provides the backoff and timeout timers.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

// RealClock uses the runtime timers.
type RealClock struct{}

// After waits for d on a runtime timer.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
