package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/internal/config"
	"argus/internal/database"
	"argus/internal/metrics"
)

// fakeExtendedStore adds the retention surface to fakeStore.
type fakeExtendedStore struct {
	*fakeStore
	purged    []string
	compacted int
}

func newFakeExtendedStore() *fakeExtendedStore {
	return &fakeExtendedStore{fakeStore: newFakeStore()}
}

func (s *fakeExtendedStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.purged = append(s.purged, "events")
	return 0, nil
}

func (s *fakeExtendedStore) DeleteMetricsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.purged = append(s.purged, "metrics")
	return 0, nil
}

func (s *fakeExtendedStore) DeleteReportsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.purged = append(s.purged, "reports")
	return 0, nil
}

func (s *fakeExtendedStore) DeleteResolvedAlertsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.purged = append(s.purged, "alerts")
	return 0, nil
}

func (s *fakeExtendedStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	s.purged = append(s.purged, "sessions")
	return 0, nil
}

func (s *fakeExtendedStore) CompactDatabase(ctx context.Context) error {
	s.compacted++
	return nil
}

func (s *fakeExtendedStore) GetDatabaseStats(ctx context.Context) (*database.DatabaseStats, error) {
	return &database.DatabaseStats{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			CleanupInterval: time.Hour,
			EventRetention:  90 * 24 * time.Hour,
			MetricRetention: 30 * 24 * time.Hour,
			ReportRetention: 30 * 24 * time.Hour,
			AlertRetention:  7 * 24 * time.Hour,
		},
		Monitoring: config.MonitoringConfig{
			CheckInterval: time.Hour,
			ProbeTimeout:  5 * time.Second,
			UptimeWindow:  24 * time.Hour,
			Services:      []string{"system", "database", "api"},
		},
	}
}

func newTestEngine(store *fakeExtendedStore, push *fakePush) *Engine {
	return NewEngine(testConfig(), store, metrics.NewCollector(), push)
}

func TestEngine_GetUptimeSummary_AllUp(t *testing.T) {
	store := newFakeExtendedStore()
	engine := newTestEngine(store, &fakePush{})

	summary, err := engine.GetUptimeSummary(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 100.0, summary.UptimePercentage)
	assert.Equal(t, 0, summary.DowntimeIncidents)
	assert.Equal(t, "excellent", summary.OverallStatus)
	assert.Equal(t, "1d 0h 0m", summary.UptimeDuration)
}

func TestEngine_GetUptimeSummary(t *testing.T) {
	store := newFakeExtendedStore()
	engine := newTestEngine(store, &fakePush{})

	// 1h outage on api within the trailing 24h
	now := time.Now()
	appendTransition(t, store.fakeStore, "api", database.EventDowntimeStart, now.Add(-5*time.Hour))
	appendTransition(t, store.fakeStore, "api", database.EventDowntimeEnd, now.Add(-4*time.Hour))

	summary, err := engine.GetUptimeSummary(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 24, summary.WindowHours)
	assert.Equal(t, "degraded", summary.OverallStatus)
	assert.InDelta(t, 95.83, summary.UptimePercentage, 0.01)
	assert.InDelta(t, 3600.0, summary.TotalDowntimeSeconds, 1.0)
	assert.Equal(t, 1, summary.DowntimeIncidents)
	assert.Len(t, summary.Services, 3)
}

func TestEngine_GetRecentIncidents(t *testing.T) {
	store := newFakeExtendedStore()
	engine := newTestEngine(store, &fakePush{})

	now := time.Now()
	// Resolved outage on database
	appendTransition(t, store.fakeStore, "database", database.EventDowntimeStart, now.Add(-3*time.Hour))
	appendTransition(t, store.fakeStore, "database", database.EventDowntimeEnd, now.Add(-3*time.Hour+10*time.Minute))
	// Open outage on api, newer
	appendTransition(t, store.fakeStore, "api", database.EventDowntimeStart, now.Add(-30*time.Minute))

	incidents, err := engine.GetRecentIncidents(context.Background(), 24, 0)
	require.NoError(t, err)
	require.Len(t, incidents, 2)

	// Newest first
	assert.Equal(t, "api", incidents[0].ServiceName)
	assert.False(t, incidents[0].Resolved)
	assert.Nil(t, incidents[0].EndedAt)
	assert.InDelta(t, 1800.0, incidents[0].DurationSeconds, 5.0)

	assert.Equal(t, "database", incidents[1].ServiceName)
	assert.True(t, incidents[1].Resolved)
	require.NotNil(t, incidents[1].EndedAt)
	assert.InDelta(t, 600.0, incidents[1].DurationSeconds, 0.001)
}

func TestEngine_GetRecentIncidents_SpanningWindowStart(t *testing.T) {
	store := newFakeExtendedStore()
	engine := newTestEngine(store, &fakePush{})

	now := time.Now()
	// Started 30h ago, recovered 2h ago: reported from its true start
	appendTransition(t, store.fakeStore, "system", database.EventDowntimeStart, now.Add(-30*time.Hour))
	appendTransition(t, store.fakeStore, "system", database.EventDowntimeEnd, now.Add(-2*time.Hour))

	incidents, err := engine.GetRecentIncidents(context.Background(), 24, 0)
	require.NoError(t, err)
	require.Len(t, incidents, 1)

	assert.True(t, incidents[0].Resolved)
	assert.InDelta(t, 28*3600.0, incidents[0].DurationSeconds, 5.0)
}

func TestEngine_GetRecentIncidents_Limit(t *testing.T) {
	store := newFakeExtendedStore()
	engine := newTestEngine(store, &fakePush{})

	now := time.Now()
	for i := 1; i <= 4; i++ {
		start := now.Add(-time.Duration(i) * time.Hour)
		appendTransition(t, store.fakeStore, "api", database.EventDowntimeStart, start)
		appendTransition(t, store.fakeStore, "api", database.EventDowntimeEnd, start.Add(5*time.Minute))
	}

	incidents, err := engine.GetRecentIncidents(context.Background(), 24, 2)
	require.NoError(t, err)
	assert.Len(t, incidents, 2)
}

func TestEngine_SummaryWithoutReportDegradesToUnknown(t *testing.T) {
	store := newFakeExtendedStore()
	engine := newTestEngine(store, &fakePush{})

	summary, err := engine.GetSystemHealthSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, database.StatusUnknown, summary.OverallStatus)
	assert.Equal(t, 0, summary.TotalMetrics)
	assert.Equal(t, 100.0, summary.UptimePercentage)
	assert.Equal(t, "excellent", summary.UptimeStatus)
}

func TestEngine_AcknowledgeTriggersImmediateBroadcast(t *testing.T) {
	store := newFakeExtendedStore()
	push := &fakePush{}
	engine := newTestEngine(store, push)

	created := engine.GetAlertManager().EvaluateAndAlert(context.Background(), []database.SLAMetric{warningMemoryMetric()})
	require.Len(t, created, 1)

	assert.True(t, engine.AcknowledgeAlert(context.Background(), created[0].ID, "ops"))
	assert.Equal(t, 1, push.sent())

	// Rejected acknowledge does not broadcast
	assert.False(t, engine.AcknowledgeAlert(context.Background(), created[0].ID, "ops"))
	assert.Equal(t, 1, push.sent())
}

func TestEngine_PurgeRetention(t *testing.T) {
	store := newFakeExtendedStore()
	engine := newTestEngine(store, &fakePush{})

	require.NoError(t, engine.PurgeRetention(context.Background()))
	assert.ElementsMatch(t, []string{"events", "metrics", "reports", "alerts", "sessions"}, store.purged)
	assert.Equal(t, 0, store.compacted)
}

func TestEngine_PurgeRetentionWithCompaction(t *testing.T) {
	store := newFakeExtendedStore()
	cfg := testConfig()
	cfg.Database.CompactOnCleanup = true
	engine := NewEngine(cfg, store, metrics.NewCollector(), &fakePush{})

	require.NoError(t, engine.PurgeRetention(context.Background()))
	assert.Equal(t, 1, store.compacted)
}

func TestApplyThresholdOverrides(t *testing.T) {
	thresholds := DefaultThresholds()
	applyThresholdOverrides(thresholds, []config.ThresholdConfig{
		{Metric: "memory_usage", Warning: 70, Critical: 85},
		{Metric: "not_a_metric", Warning: 1, Critical: 2},
	})

	mem := thresholds[database.MetricMemoryUsage]
	assert.Equal(t, 70.0, mem.WarningThreshold)
	assert.Equal(t, 85.0, mem.CriticalThreshold)
	assert.Equal(t, "%", mem.Unit)

	// Unknown overrides are ignored, known defaults untouched
	assert.Equal(t, 80.0, thresholds[database.MetricCPUUsage].WarningThreshold)
}

func TestUptimeStatusOf(t *testing.T) {
	assert.Equal(t, "excellent", uptimeStatusOf(99.95))
	assert.Equal(t, "excellent", uptimeStatusOf(99.9))
	assert.Equal(t, "good", uptimeStatusOf(99.5))
	assert.Equal(t, "degraded", uptimeStatusOf(97.0))
	assert.Equal(t, "poor", uptimeStatusOf(90.0))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1d 2h 5m", formatDuration(26*time.Hour+5*time.Minute))
	assert.Equal(t, "3h 0m", formatDuration(3*time.Hour))
	assert.Equal(t, "45m", formatDuration(45*time.Minute))
	assert.Equal(t, "0m", formatDuration(-time.Minute))
}
