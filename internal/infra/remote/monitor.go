package remote

import (
	"sync"
	"time"
)

// Status represents the transport health of a remote.
type Status int

const (
	StatusHealthy  Status = iota // Remote answers normally
	StatusDegraded               // Remote is slow or failing intermittently
	StatusDown                   // Remote failed repeatedly in a row
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}

// MonitorStats holds monitoring statistics for a remote.
type MonitorStats struct {
	Status              Status        `json:"-"`
	StatusText          string        `json:"status"`
	AverageLatency      time.Duration `json:"average_latency"`
	SuccessCount        int           `json:"success_count"`
	FailureCount        int           `json:"failure_count"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	LastError           string        `json:"last_error,omitempty"`
}

// Monitor tracks fetch latency and failures of one remote.
type Monitor struct {
	mu sync.RWMutex

	// Response time tracking
	recentLatencies  []time.Duration
	maxLatencyWindow int

	successCount        int
	failureCount        int
	consecutiveFailures int
	lastSuccessAt       time.Time
	lastError           string

	// Thresholds
	slowResponseThreshold time.Duration
	downAfter             int
}

// NewMonitor creates a new monitor with default settings.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 50),
		maxLatencyWindow:      50,
		slowResponseThreshold: 2 * time.Second,
		downAfter:             5,
	}
}

// RecordSuccess records a successful fetch with its latency.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
	m.successCount++
	m.consecutiveFailures = 0
	m.lastSuccessAt = time.Now()
}

// RecordFailure records a failed fetch.
func (m *Monitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failureCount++
	m.consecutiveFailures++
	if err != nil {
		m.lastError = err.Error()
	}
}

// Status returns the current status of the remote.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status()
}

func (m *Monitor) status() Status {
	if m.consecutiveFailures >= m.downAfter {
		return StatusDown
	}
	if m.consecutiveFailures > 0 {
		return StatusDegraded
	}
	if len(m.recentLatencies) >= 5 && m.averageLatency() > m.slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

func (m *Monitor) averageLatency() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// Stats returns current monitoring statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := m.status()
	return MonitorStats{
		Status:              status,
		StatusText:          status.String(),
		AverageLatency:      m.averageLatency(),
		SuccessCount:        m.successCount,
		FailureCount:        m.failureCount,
		ConsecutiveFailures: m.consecutiveFailures,
		LastSuccessAt:       m.lastSuccessAt,
		LastError:           m.lastError,
	}
}
