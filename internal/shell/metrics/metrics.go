package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoadAttemptFailures tracks failed load attempts per remote and failure kind
	LoadAttemptFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_load_attempt_failures_total",
			Help: "Total number of failed remote load attempts",
		},
		[]string{"remote", "kind"},
	)

	// LoadCycles tracks settled load cycles per remote and outcome
	LoadCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_load_cycles_total",
			Help: "Total number of settled remote load cycles",
		},
		[]string{"remote", "outcome"},
	)

	// LoadLatency tracks the duration of a load cycle including backoff
	LoadLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shell_load_cycle_seconds",
			Help:    "Remote load cycle duration in seconds, retries included",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"remote"},
	)

	// StaleResults tracks results of abandoned attempts that were discarded
	StaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_stale_results_total",
			Help: "Total number of discarded results of abandoned load attempts",
		},
		[]string{"remote"},
	)

	// BoundaryFailures tracks failures caught by remote boundaries
	BoundaryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_boundary_failures_total",
			Help: "Total number of failures caught by remote boundaries",
		},
		[]string{"remote", "kind"},
	)

	// Retries tracks user-triggered retries
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_manual_retries_total",
			Help: "Total number of user-triggered remote retries",
		},
		[]string{"remote"},
	)

	// MountTransitions tracks mount phase changes
	MountTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_mount_transitions_total",
			Help: "Total number of mount phase transitions",
		},
		[]string{"remote", "from", "to"},
	)

	// ActiveSessions tracks sessions holding at least one mount
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shell_active_sessions",
			Help: "Number of sessions tracked by the shell",
		},
	)

	// TransportRequests tracks entry document fetches per remote and status
	TransportRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shell_transport_requests_total",
			Help: "Total number of remote entry fetches",
		},
		[]string{"remote", "status"},
	)

	// TransportLatency tracks entry document fetch latency
	TransportLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shell_transport_latency_seconds",
			Help:    "Remote entry fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"remote"},
	)
)
