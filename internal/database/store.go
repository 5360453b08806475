// internal/database/store.go
package database

import (
	"context"
	"time"
)

// Store defines the interface for database operations
type Store interface {
	// Uptime event log (append-only)
	AppendEvent(ctx context.Context, event *UptimeEvent) error
	GetEvents(ctx context.Context, filters EventFilters) ([]UptimeEvent, error)
	GetLastEventBefore(ctx context.Context, serviceName string, before time.Time, types []EventType) (*UptimeEvent, error)

	// Metric operations
	InsertMetrics(ctx context.Context, metrics []SLAMetric) error
	GetMetricsSince(ctx context.Context, since time.Time, limit int) ([]SLAMetric, error)

	// Alert operations
	InsertAlert(ctx context.Context, alert *SLAAlert) error
	GetAlert(ctx context.Context, id string) (*SLAAlert, error)
	GetAlerts(ctx context.Context, filters AlertFilters) ([]SLAAlert, error)
	UpdateAlert(ctx context.Context, alert *SLAAlert) error

	// Report operations
	InsertReport(ctx context.Context, report *SLAReport) error
	GetLatestReport(ctx context.Context) (*SLAReport, error)

	// Session operations
	PutSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, token string) error
	CountActiveSessions(ctx context.Context, activeSince time.Time) (int, error)
	CountValidSessions(ctx context.Context, now time.Time) (int, error)

	// Ping performs a trivial round-trip, used by the database health probe.
	Ping(ctx context.Context) error

	// Close the database connection
	Close() error
}
