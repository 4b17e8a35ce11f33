// Package health provides shell health monitoring and status reporting.
package health

import "github.com/vietddude/shell/internal/infra/remote"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// RemoteHealth contains health metrics for one remote.
type RemoteHealth struct {
	Remote        string               `json:"remote"`
	Status        SystemStatus         `json:"status"`
	Mounts        int                  `json:"mounts"`
	LoadingMounts int                  `json:"loading_mounts"`
	FailedMounts  int                  `json:"failed_mounts"`
	Transport     *remote.MonitorStats `json:"transport,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus            `json:"system_status"`
	Sessions     int                     `json:"sessions"`
	Remotes      map[string]RemoteHealth `json:"remotes"`
}
