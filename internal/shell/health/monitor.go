package health

import (
	"sync"
	"time"

	"github.com/vietddude/shell/internal/core/domain"
	"github.com/vietddude/shell/internal/infra/remote"
	"github.com/vietddude/shell/internal/loading/mount"
)

// MountLister lists live mounts.
type MountLister interface {
	Snapshot() []mount.Info
	Sessions() int
}

// TransportStats reports transport statistics of a remote.
type TransportStats interface {
	Stats() remote.MonitorStats
}

// Monitor aggregates health status from mounts and transports.
type Monitor struct {
	remotes    []string
	mounts     MountLister
	transports map[string]TransportStats
	interval   time.Duration
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. transports may omit remotes that
// are not loaded over a monitored transport.
func NewMonitor(remotes []string, mounts MountLister, transports map[string]TransportStats) *Monitor {
	return &Monitor{
		remotes:    remotes,
		mounts:     mounts,
		transports: transports,
		interval:   2 * time.Second,
	}
}

// CheckHealth builds the health report. Reports are cached briefly.
func (m *Monitor) CheckHealth() HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < m.interval && m.lastReport.Remotes != nil {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Sessions:     m.mounts.Sessions(),
		Remotes:      make(map[string]RemoteHealth, len(m.remotes)),
	}
	for _, name := range m.remotes {
		report.Remotes[name] = RemoteHealth{Remote: name, Status: StatusHealthy}
	}

	for _, info := range m.mounts.Snapshot() {
		h, ok := report.Remotes[info.Remote]
		if !ok {
			continue
		}
		h.Mounts++
		switch info.Status.Phase {
		case domain.PhaseLoading:
			h.LoadingMounts++
		case domain.PhaseFailed:
			h.FailedMounts++
		}
		report.Remotes[info.Remote] = h
	}

	for name, h := range report.Remotes {
		if t, ok := m.transports[name]; ok {
			stats := t.Stats()
			h.Transport = &stats
		}
		h.Status = evaluate(h)
		report.Remotes[name] = h
		report.SystemStatus = worst(report.SystemStatus, h.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

// evaluate rates a remote. A remote failing for every session, or whose
// transport is down, is critical.
func evaluate(h RemoteHealth) SystemStatus {
	if h.Transport != nil && h.Transport.Status == remote.StatusDown {
		return StatusCritical
	}
	if h.FailedMounts > 0 && h.FailedMounts == h.Mounts {
		return StatusCritical
	}
	if h.FailedMounts > 0 || (h.Transport != nil && h.Transport.Status == remote.StatusDegraded) {
		return StatusDegraded
	}
	return StatusHealthy
}

func worst(a, b SystemStatus) SystemStatus {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
