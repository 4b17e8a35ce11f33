package mount

import (
	"context"
	"log/slog"
	"time"
)

// Janitor unmounts the mounts of idle sessions.
type Janitor struct {
	registry *Registry
	idle     time.Duration
	onSweep  func(removed int)
}

// NewJanitor creates a janitor for registry. Sessions idle for longer than
// idle are removed.
func NewJanitor(registry *Registry, idle time.Duration) *Janitor {
	return &Janitor{
		registry: registry,
		idle:     idle,
	}
}

// OnSweep registers a callback invoked after every sweep.
func (j *Janitor) OnSweep(fn func(removed int)) {
	j.onSweep = fn
}

// Start runs the sweep loop until ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	if j.idle <= 0 {
		return // Expiry disabled
	}

	// Check at a tenth of the idle window, between a second and a minute.
	interval := min(j.idle/10, time.Minute)
	interval = max(interval, time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *Janitor) sweep() {
	removed := j.registry.Sweep(j.idle)
	if removed > 0 {
		slog.Debug("Swept idle sessions", "removed", removed, "remaining", j.registry.Sessions())
	}
	if j.onSweep != nil {
		j.onSweep(removed)
	}
}
