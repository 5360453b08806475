package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtendedStore(t *testing.T) ExtendedStore {
	t.Helper()
	store, err := NewExtendedBoltStore(filepath.Join(t.TempDir(), "argus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDeleteEventsBefore(t *testing.T) {
	store := newTestExtendedStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mustAppend(t, store, "api", EventStart, base)
	mustAppend(t, store, "api", EventDowntimeStart, base.Add(24*time.Hour))
	mustAppend(t, store, "database", EventStart, base.Add(48*time.Hour))

	deleted, err := store.DeleteEventsBefore(context.Background(), base.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	events, err := store.GetEvents(context.Background(), EventFilters{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "database", events[0].ServiceName)
}

func TestDeleteMetricsAndReportsBefore(t *testing.T) {
	store := newTestExtendedStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertMetrics(context.Background(), []SLAMetric{
		{MetricType: MetricCPUUsage, MeasuredAt: base},
		{MetricType: MetricCPUUsage, MeasuredAt: base.Add(2 * time.Hour)},
	}))
	require.NoError(t, store.InsertReport(context.Background(), &SLAReport{GeneratedAt: base}))
	require.NoError(t, store.InsertReport(context.Background(), &SLAReport{GeneratedAt: base.Add(2 * time.Hour)}))

	deleted, err := store.DeleteMetricsBefore(context.Background(), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	deleted, err = store.DeleteReportsBefore(context.Background(), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	latest, err := store.GetLatestReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Hour), latest.GeneratedAt.UTC())
}

func TestDeleteResolvedAlertsBefore_KeepsOpenAlerts(t *testing.T) {
	store := newTestExtendedStore(t)
	old := time.Now().Add(-30 * 24 * time.Hour)

	open := SLAAlert{AlertType: StatusWarning, TriggeredAt: old}
	require.NoError(t, store.InsertAlert(context.Background(), &open))

	resolvedOld := SLAAlert{AlertType: StatusCritical, TriggeredAt: old, Resolved: true, ResolvedAt: &old}
	require.NoError(t, store.InsertAlert(context.Background(), &resolvedOld))

	recent := time.Now()
	resolvedRecent := SLAAlert{AlertType: StatusWarning, TriggeredAt: recent, Resolved: true, ResolvedAt: &recent}
	require.NoError(t, store.InsertAlert(context.Background(), &resolvedRecent))

	deleted, err := store.DeleteResolvedAlertsBefore(context.Background(), time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	// The ancient open alert survives
	_, err = store.GetAlert(context.Background(), open.ID)
	assert.NoError(t, err)
	_, err = store.GetAlert(context.Background(), resolvedOld.ID)
	assert.Error(t, err)
	_, err = store.GetAlert(context.Background(), resolvedRecent.ID)
	assert.NoError(t, err)
}

func TestDeleteExpiredSessions(t *testing.T) {
	store := newTestExtendedStore(t)
	now := time.Now()

	require.NoError(t, store.PutSession(context.Background(), &Session{
		Token: "live", UserID: "alice", ExpiresAt: now.Add(time.Hour), LastSeen: now,
	}))
	require.NoError(t, store.PutSession(context.Background(), &Session{
		Token: "stale", UserID: "bob", ExpiresAt: now.Add(-time.Hour), LastSeen: now,
	}))

	deleted, err := store.DeleteExpiredSessions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	valid, err := store.CountValidSessions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, valid)
}

func TestGetDatabaseStats(t *testing.T) {
	store := newTestExtendedStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mustAppend(t, store, "api", EventStart, base.Add(time.Hour))
	mustAppend(t, store, "database", EventStart, base)
	require.NoError(t, store.InsertAlert(context.Background(), &SLAAlert{TriggeredAt: base}))
	require.NoError(t, store.InsertReport(context.Background(), &SLAReport{GeneratedAt: base}))

	stats, err := store.GetDatabaseStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalEvents)
	assert.Equal(t, 1, stats.TotalAlerts)
	assert.Equal(t, 1, stats.TotalReports)
	assert.Equal(t, base, stats.OldestEvent.UTC())
	assert.Equal(t, base.Add(time.Hour), stats.NewestEvent.UTC())
	assert.Greater(t, stats.DatabaseSize, int64(0))
}

func TestCompactDatabase_PreservesData(t *testing.T) {
	store := newTestExtendedStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mustAppend(t, store, "api", EventStart, base)
	alert := SLAAlert{AlertType: StatusWarning, TriggeredAt: base}
	require.NoError(t, store.InsertAlert(context.Background(), &alert))

	require.NoError(t, store.CompactDatabase(context.Background()))

	events, err := store.GetEvents(context.Background(), EventFilters{})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = store.GetAlert(context.Background(), alert.ID)
	assert.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}
