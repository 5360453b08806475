// internal/database/models.go
package database

import (
	"fmt"
	"time"
)

// EventType identifies the kind of uptime event recorded in the log.
type EventType string

const (
	EventStart         EventType = "start"
	EventDowntimeStart EventType = "downtime_start"
	EventDowntimeEnd   EventType = "downtime_end"
)

// Severity of a downtime event.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// MetricStatus is the health classification assigned to a metric value.
type MetricStatus string

const (
	StatusHealthy  MetricStatus = "healthy"
	StatusWarning  MetricStatus = "warning"
	StatusCritical MetricStatus = "critical"
	StatusUnknown  MetricStatus = "unknown"
)

// MetricType identifies one of the fixed set of collected metrics.
type MetricType string

const (
	MetricMemoryUsage       MetricType = "memory_usage"
	MetricCPUUsage          MetricType = "cpu_usage"
	MetricDiskUsage         MetricType = "disk_usage"
	MetricDatabaseLatency   MetricType = "database_latency"
	MetricActiveConnections MetricType = "active_connections"
	MetricActiveSessions    MetricType = "active_sessions"
	MetricDowntime          MetricType = "downtime"
)

// UptimeEvent is an immutable fact recording a service transition. Events are
// append-only; they are never mutated and only retention purges remove them.
type UptimeEvent struct {
	ID           string                 `json:"id"`
	EventType    EventType              `json:"event_type"`
	ServiceName  string                 `json:"service_name"`
	Timestamp    time.Time              `json:"timestamp"`
	Duration     float64                `json:"duration_seconds,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Severity     Severity               `json:"severity,omitempty"`
	AutoDetected bool                   `json:"auto_detected"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the structural invariants of an event before it is appended.
func (e *UptimeEvent) Validate() error {
	switch e.EventType {
	case EventStart, EventDowntimeStart, EventDowntimeEnd:
	default:
		return fmt.Errorf("unknown event type: %s", e.EventType)
	}
	if e.ServiceName == "" {
		return fmt.Errorf("event service name cannot be empty")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event timestamp cannot be zero")
	}
	if e.EventType == EventDowntimeEnd && e.Duration < 0 {
		return fmt.Errorf("downtime_end duration cannot be negative")
	}
	return nil
}

// SLAThreshold holds the two-tier cutoffs for one metric type. Higher values
// always mean worse health; non-monotonic metrics are inverted by the caller
// before classification.
type SLAThreshold struct {
	MetricType        MetricType `json:"metric_type"`
	WarningThreshold  float64    `json:"warning_threshold"`
	CriticalThreshold float64    `json:"critical_threshold"`
	Unit              string     `json:"unit"`
}

// Classify maps a metric value to a status using the threshold cutoffs.
func (t SLAThreshold) Classify(value float64) MetricStatus {
	if value >= t.CriticalThreshold {
		return StatusCritical
	}
	if value >= t.WarningThreshold {
		return StatusWarning
	}
	return StatusHealthy
}

// SLAMetric is one measured value with its threshold and derived status.
// Created fresh on every collection cycle and persisted in batches.
type SLAMetric struct {
	ID             string                 `json:"id"`
	MetricType     MetricType             `json:"metric_type"`
	Value          float64                `json:"value"`
	Threshold      SLAThreshold           `json:"threshold"`
	Status         MetricStatus           `json:"status"`
	MeasuredAt     time.Time              `json:"measured_at"`
	AdditionalData map[string]interface{} `json:"additional_data,omitempty"`
}

// SLAReport is a point-in-time snapshot of all collected metrics. Metrics are
// embedded rather than referenced so reports stay readable after threshold
// configuration changes.
type SLAReport struct {
	ID              string                 `json:"id"`
	ReportType      string                 `json:"report_type"`
	Metrics         []SLAMetric            `json:"metrics"`
	OverallStatus   MetricStatus           `json:"overall_status"`
	GeneratedAt     time.Time              `json:"generated_at"`
	Summary         string                 `json:"summary"`
	Recommendations []string               `json:"recommendations,omitempty"`
	AdditionalData  map[string]interface{} `json:"additional_data,omitempty"`
}

// OverallStatusOf derives the report-level status from a metric list:
// critical beats warning beats healthy, unknown if the list is empty.
func OverallStatusOf(metrics []SLAMetric) MetricStatus {
	if len(metrics) == 0 {
		return StatusUnknown
	}
	status := StatusHealthy
	for _, m := range metrics {
		switch m.Status {
		case StatusCritical:
			return StatusCritical
		case StatusWarning:
			status = StatusWarning
		}
	}
	return status
}

// SLAAlert records a threshold breach. Acknowledgement and resolution are
// independent flags; neither deletes the alert.
type SLAAlert struct {
	ID             string       `json:"id"`
	AlertType      MetricStatus `json:"alert_type"`
	Title          string       `json:"title"`
	Message        string       `json:"message"`
	MetricType     MetricType   `json:"metric_type"`
	CurrentValue   float64      `json:"current_value"`
	ThresholdValue float64      `json:"threshold_value"`
	TriggeredAt    time.Time    `json:"triggered_at"`
	Acknowledged   bool         `json:"acknowledged"`
	AcknowledgedAt *time.Time   `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string       `json:"acknowledged_by,omitempty"`
	Resolved       bool         `json:"resolved"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
}

// Session is one authenticated session token, used by the application metric
// family to count active users.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	LastSeen  time.Time `json:"last_seen"`
}

type EventFilters struct {
	ServiceName string
	Types       []EventType
	Since       *time.Time
	Until       *time.Time
	Limit       int
}

func (f EventFilters) matchesType(t EventType) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, want := range f.Types {
		if t == want {
			return true
		}
	}
	return false
}

type AlertFilters struct {
	Resolved     *bool
	Acknowledged *bool
	Since        *time.Time
	Limit        int
}

// DatabaseStats provides information about database size and health.
type DatabaseStats struct {
	TotalEvents   int       `json:"total_events"`
	TotalMetrics  int       `json:"total_metrics"`
	TotalAlerts   int       `json:"total_alerts"`
	TotalReports  int       `json:"total_reports"`
	TotalSessions int       `json:"total_sessions"`
	DatabaseSize  int64     `json:"database_size_bytes"`
	OldestEvent   time.Time `json:"oldest_event"`
	NewestEvent   time.Time `json:"newest_event"`
}
