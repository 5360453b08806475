// internal/monitoring/collector.go
package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"argus/internal/database"
)

// LatencySentinelMS is recorded for the database latency metric when the
// round-trip itself fails, forcing a critical classification.
const LatencySentinelMS = 99999.0

// DefaultThresholds returns the built-in two-tier threshold table. Entries can
// be overridden from configuration.
func DefaultThresholds() map[database.MetricType]database.SLAThreshold {
	return map[database.MetricType]database.SLAThreshold{
		database.MetricMemoryUsage: {
			MetricType: database.MetricMemoryUsage, WarningThreshold: 80, CriticalThreshold: 90, Unit: "%",
		},
		database.MetricCPUUsage: {
			MetricType: database.MetricCPUUsage, WarningThreshold: 80, CriticalThreshold: 95, Unit: "%",
		},
		database.MetricDiskUsage: {
			MetricType: database.MetricDiskUsage, WarningThreshold: 85, CriticalThreshold: 95, Unit: "%",
		},
		database.MetricDatabaseLatency: {
			MetricType: database.MetricDatabaseLatency, WarningThreshold: 500, CriticalThreshold: 2000, Unit: "ms",
		},
		database.MetricActiveConnections: {
			MetricType: database.MetricActiveConnections, WarningThreshold: 80, CriticalThreshold: 120, Unit: "connections",
		},
		database.MetricActiveSessions: {
			MetricType: database.MetricActiveSessions, WarningThreshold: 500, CriticalThreshold: 1000, Unit: "sessions",
		},
		// Uptime is classified on its inverse so that higher still means
		// worse: 0.1% downtime over the window warns, 1% is critical.
		database.MetricDowntime: {
			MetricType: database.MetricDowntime, WarningThreshold: 0.1, CriticalThreshold: 1.0, Unit: "%",
		},
	}
}

// MetricCollector gathers the operational metric families and classifies each
// value against its threshold. Families are isolated: a failure in one family
// yields a sentinel metric and a warning, never an aborted cycle.
type MetricCollector struct {
	store        database.Store
	calc         *UptimeCalculator
	services     []string
	uptimeWindow time.Duration
	thresholds   map[database.MetricType]database.SLAThreshold
	connections  func() int
	now          func() time.Time

	// Collection functions for mocking
	getMemStats   func(context.Context) (*mem.VirtualMemoryStat, error)
	getCPUPercent func(context.Context, time.Duration, bool) ([]float64, error)
	getDiskUsage  func(context.Context, string) (*disk.UsageStat, error)
}

func NewMetricCollector(store database.Store, calc *UptimeCalculator, services []string, uptimeWindow time.Duration, thresholds map[database.MetricType]database.SLAThreshold, connections func() int) *MetricCollector {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	if connections == nil {
		connections = func() int { return 0 }
	}
	return &MetricCollector{
		store:         store,
		calc:          calc,
		services:      services,
		uptimeWindow:  uptimeWindow,
		thresholds:    thresholds,
		connections:   connections,
		now:           time.Now,
		getMemStats:   mem.VirtualMemoryWithContext,
		getCPUPercent: cpu.PercentWithContext,
		getDiskUsage:  diskUsageWithContext,
	}
}

func diskUsageWithContext(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}

// Collect runs all metric families and returns the classified metrics plus
// per-family collection warnings.
func (c *MetricCollector) Collect(ctx context.Context) ([]database.SLAMetric, []string) {
	var (
		metrics  []database.SLAMetric
		warnings []string
	)

	collect := func(family string, fn func(context.Context) ([]database.SLAMetric, error)) {
		familyMetrics, err := fn(ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", family, err))
			logrus.WithError(err).WithField("family", family).Warn("Metric family collection degraded")
		}
		metrics = append(metrics, familyMetrics...)
	}

	collect("system", c.collectSystem)
	collect("database", c.collectDatabase)
	collect("application", c.collectApplication)
	collect("uptime", c.collectUptime)

	return metrics, warnings
}

func (c *MetricCollector) collectSystem(ctx context.Context) ([]database.SLAMetric, error) {
	var metrics []database.SLAMetric
	var firstErr error

	if v, err := c.getMemStats(ctx); err == nil {
		metrics = append(metrics, c.newMetric(database.MetricMemoryUsage, v.UsedPercent, nil))
	} else {
		firstErr = err
		metrics = append(metrics, c.degradedMetric(database.MetricMemoryUsage, err))
	}

	if percents, err := c.getCPUPercent(ctx, 0, false); err == nil && len(percents) > 0 {
		metrics = append(metrics, c.newMetric(database.MetricCPUUsage, percents[0], nil))
	} else {
		if err == nil {
			err = fmt.Errorf("no cpu data returned")
		}
		if firstErr == nil {
			firstErr = err
		}
		metrics = append(metrics, c.degradedMetric(database.MetricCPUUsage, err))
	}

	if usage, err := c.getDiskUsage(ctx, "/"); err == nil {
		metrics = append(metrics, c.newMetric(database.MetricDiskUsage, usage.UsedPercent, nil))
	} else {
		if firstErr == nil {
			firstErr = err
		}
		metrics = append(metrics, c.degradedMetric(database.MetricDiskUsage, err))
	}

	return metrics, firstErr
}

func (c *MetricCollector) collectDatabase(ctx context.Context) ([]database.SLAMetric, error) {
	var metrics []database.SLAMetric
	var firstErr error

	start := c.now()
	err := c.store.Ping(ctx)
	latencyMS := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		firstErr = err
		// Sentinel latency forces a critical classification on failure.
		metrics = append(metrics, c.newMetric(database.MetricDatabaseLatency, LatencySentinelMS, map[string]interface{}{
			"error": err.Error(),
		}))
	} else {
		metrics = append(metrics, c.newMetric(database.MetricDatabaseLatency, latencyMS, nil))
	}

	metrics = append(metrics, c.newMetric(database.MetricActiveConnections, float64(c.connections()), map[string]interface{}{
		"source": "push_channel",
	}))

	return metrics, firstErr
}

func (c *MetricCollector) collectApplication(ctx context.Context) ([]database.SLAMetric, error) {
	now := c.now()

	// Distinct active users over the trailing 24h; fall back to counting
	// valid session tokens when activity history is unavailable.
	count, err := c.store.CountActiveSessions(ctx, now.Add(-24*time.Hour))
	source := "activity"
	if err != nil {
		count, err = c.store.CountValidSessions(ctx, now)
		source = "valid_tokens"
		if err != nil {
			return []database.SLAMetric{c.degradedMetric(database.MetricActiveSessions, err)}, err
		}
	}

	return []database.SLAMetric{c.newMetric(database.MetricActiveSessions, float64(count), map[string]interface{}{
		"source": source,
	})}, nil
}

func (c *MetricCollector) collectUptime(ctx context.Context) ([]database.SLAMetric, error) {
	now := c.now()
	overall, err := c.calc.CalculateOverall(ctx, c.services, now.Add(-c.uptimeWindow), now)
	if err != nil {
		return []database.SLAMetric{c.degradedMetric(database.MetricDowntime, err)}, err
	}

	// Classified on downtime percent so that the monotone threshold rule
	// applies; the raw uptime percentage rides along in additional data.
	return []database.SLAMetric{c.newMetric(database.MetricDowntime, 100.0-overall.UptimePercentage, map[string]interface{}{
		"uptime_percentage":  overall.UptimePercentage,
		"downtime_incidents": overall.DowntimeIncidents,
		"window_hours":       c.uptimeWindow.Hours(),
	})}, nil
}

func (c *MetricCollector) newMetric(metricType database.MetricType, value float64, additional map[string]interface{}) database.SLAMetric {
	threshold := c.thresholds[metricType]
	return database.SLAMetric{
		MetricType:     metricType,
		Value:          value,
		Threshold:      threshold,
		Status:         threshold.Classify(value),
		MeasuredAt:     c.now(),
		AdditionalData: additional,
	}
}

// degradedMetric records a failed collection: zero value, unknown status, and
// the error captured in additional data.
func (c *MetricCollector) degradedMetric(metricType database.MetricType, err error) database.SLAMetric {
	return database.SLAMetric{
		MetricType: metricType,
		Value:      0,
		Threshold:  c.thresholds[metricType],
		Status:     database.StatusUnknown,
		MeasuredAt: c.now(),
		AdditionalData: map[string]interface{}{
			"error": err.Error(),
		},
	}
}

// GenerateReport collects one full metric cycle and persists the snapshot.
// Store failures are logged; the report is still returned for live use.
func (c *MetricCollector) GenerateReport(ctx context.Context) *database.SLAReport {
	metrics, warnings := c.Collect(ctx)
	overall := database.OverallStatusOf(metrics)

	report := &database.SLAReport{
		ReportType:      "sla_monitoring",
		Metrics:         metrics,
		OverallStatus:   overall,
		GeneratedAt:     c.now(),
		Summary:         buildSummary(metrics, overall),
		Recommendations: buildRecommendations(metrics),
	}
	if len(warnings) > 0 {
		report.AdditionalData = map[string]interface{}{
			"collection_warnings": warnings,
		}
	}

	if err := c.store.InsertMetrics(ctx, report.Metrics); err != nil {
		logrus.WithError(err).Error("Failed to persist metrics batch")
	}
	if err := c.store.InsertReport(ctx, report); err != nil {
		logrus.WithError(err).Error("Failed to persist report")
	}

	return report
}

func buildSummary(metrics []database.SLAMetric, overall database.MetricStatus) string {
	healthy, warning, critical := CountByStatus(metrics)
	return fmt.Sprintf("System status %s: %d healthy, %d warning, %d critical of %d metrics",
		overall, healthy, warning, critical, len(metrics))
}

func buildRecommendations(metrics []database.SLAMetric) []string {
	var recs []string
	for _, m := range metrics {
		if m.Status != database.StatusWarning && m.Status != database.StatusCritical {
			continue
		}
		switch m.MetricType {
		case database.MetricMemoryUsage:
			recs = append(recs, "Memory usage is elevated; investigate large allocations or add capacity")
		case database.MetricCPUUsage:
			recs = append(recs, "CPU usage is elevated; profile hot paths or add capacity")
		case database.MetricDiskUsage:
			recs = append(recs, "Disk usage is elevated; purge old data or extend the volume")
		case database.MetricDatabaseLatency:
			recs = append(recs, "Database round-trips are slow; check storage health and compaction")
		case database.MetricActiveConnections:
			recs = append(recs, "Connection count is high; consider raising limits or load shedding")
		case database.MetricActiveSessions:
			recs = append(recs, "Session count is high; verify expiry cleanup is keeping up")
		case database.MetricDowntime:
			recs = append(recs, "Availability dropped below target; review recent incidents")
		}
	}
	return recs
}

// CountByStatus tallies metrics per classification.
func CountByStatus(metrics []database.SLAMetric) (healthy, warning, critical int) {
	for _, m := range metrics {
		switch m.Status {
		case database.StatusHealthy:
			healthy++
		case database.StatusWarning:
			warning++
		case database.StatusCritical:
			critical++
		}
	}
	return
}
