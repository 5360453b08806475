// internal/database/store_extensions.go - Extended store interface for retention purging
package database

import (
	"context"
	"time"
)

// ExtendedStore extends the basic Store interface with retention and
// maintenance operations
type ExtendedStore interface {
	Store

	// Retention purge operations
	DeleteEventsBefore(ctx context.Context, cutoffTime time.Time) (int, error)
	DeleteMetricsBefore(ctx context.Context, cutoffTime time.Time) (int, error)
	DeleteReportsBefore(ctx context.Context, cutoffTime time.Time) (int, error)
	DeleteResolvedAlertsBefore(ctx context.Context, cutoffTime time.Time) (int, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)

	// Data maintenance operations
	CompactDatabase(ctx context.Context) error
	GetDatabaseStats(ctx context.Context) (*DatabaseStats, error)
}
