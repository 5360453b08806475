// internal/monitoring/engine.go
package monitoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"argus/internal/config"
	"argus/internal/database"
	"argus/internal/metrics"
)

// Engine owns the monitoring pipeline: scheduler-driven health checks feed
// the state tracker, metric collection feeds the alert manager, and every
// cycle ends with a diffed broadcast to subscribers.
type Engine struct {
	config      *config.Config
	store       database.ExtendedStore
	metrics     *metrics.Collector
	checker     *HealthChecker
	tracker     *StateTracker
	calc        *UptimeCalculator
	collector   *MetricCollector
	alerts      *AlertManager
	broadcaster *Broadcaster
	scheduler   *Scheduler

	mu      sync.RWMutex
	running bool
}

// HealthSummary is the headline view exposed to the API and pushed to
// subscribers.
type HealthSummary struct {
	OverallStatus    database.MetricStatus `json:"overall_status"`
	HealthPercentage float64               `json:"health_percentage"`
	UptimeStatus     string                `json:"uptime_status"`
	UptimePercentage float64               `json:"uptime_percentage"`
	UptimeDuration   string                `json:"uptime_duration"`
	HealthyMetrics   int                   `json:"healthy_metrics"`
	WarningMetrics   int                   `json:"warning_metrics"`
	CriticalMetrics  int                   `json:"critical_metrics"`
	TotalMetrics     int                   `json:"total_metrics"`
	ActiveAlerts     int                   `json:"active_alerts"`
	LastUpdated      time.Time             `json:"last_updated"`
}

// UptimeSummary is the per-window availability view.
type UptimeSummary struct {
	OverallStatus        string                 `json:"overall_status"`
	UptimePercentage     float64                `json:"uptime_percentage"`
	UptimeDuration       string                 `json:"uptime_duration"`
	DowntimeIncidents    int                    `json:"downtime_incidents"`
	TotalDowntimeSeconds float64                `json:"total_downtime_seconds"`
	Services             map[string]UptimeStats `json:"services"`
	WindowHours          int                    `json:"window_hours"`
	GeneratedAt          time.Time              `json:"generated_at"`
}

// Incident is one continuous downtime interval of a service.
type Incident struct {
	ServiceName     string            `json:"service_name"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         *time.Time        `json:"ended_at,omitempty"`
	DurationSeconds float64           `json:"duration_seconds"`
	Resolved        bool              `json:"resolved"`
	Severity        database.Severity `json:"severity"`
}

func NewEngine(cfg *config.Config, store database.ExtendedStore, metricsCollector *metrics.Collector, push PushChannel) *Engine {
	checker := NewHealthChecker(store, cfg.Monitoring.ProbeTimeout)
	tracker := NewStateTracker(store, cfg.Monitoring.Services)
	calc := NewUptimeCalculator(store)
	broadcaster := NewBroadcaster(push, DefaultTopic)

	thresholds := DefaultThresholds()
	applyThresholdOverrides(thresholds, cfg.Thresholds)

	collector := NewMetricCollector(store, calc, cfg.Monitoring.Services, cfg.Monitoring.UptimeWindow, thresholds, func() int {
		return push.ConnectionCount(DefaultTopic)
	})

	engine := &Engine{
		config:      cfg,
		store:       store,
		metrics:     metricsCollector,
		checker:     checker,
		tracker:     tracker,
		calc:        calc,
		collector:   collector,
		alerts:      NewAlertManager(store),
		broadcaster: broadcaster,
	}
	engine.scheduler = NewScheduler(cfg.Monitoring.CheckInterval, engine.tick)

	// Acknowledgements and resolutions push immediately, bypassing the diff.
	engine.alerts.SetOnChange(engine.broadcastNow)

	return engine
}

func applyThresholdOverrides(thresholds map[database.MetricType]database.SLAThreshold, overrides []config.ThresholdConfig) {
	for _, o := range overrides {
		metricType := database.MetricType(o.Metric)
		t, exists := thresholds[metricType]
		if !exists {
			logrus.WithField("metric", o.Metric).Warn("Threshold override for unknown metric, ignoring")
			continue
		}
		t.WarningThreshold = o.Warning
		t.CriticalThreshold = o.Critical
		if o.Unit != "" {
			t.Unit = o.Unit
		}
		thresholds[metricType] = t
	}
}

// Start initializes the state tracker and launches the scheduler and the
// retention purge loop. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	logrus.Info("Starting monitoring engine")

	e.tracker.Initialize(ctx)
	e.schedulePeriodicPurge(ctx, e.config.Database.CleanupInterval)
	e.scheduler.Start(ctx)
}

// Stop halts the scheduler, waiting for any in-flight tick.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	logrus.Info("Stopping monitoring engine")
	e.scheduler.Stop()
	e.running = false
}

// GetAlertManager exposes the alert manager to the web layer.
func (e *Engine) GetAlertManager() *AlertManager {
	return e.alerts
}

// GetStore exposes the extended store for admin stats and purge endpoints.
func (e *Engine) GetStore() database.ExtendedStore {
	return e.store
}

// tick is one scheduler pass: probe, track, collect, alert, broadcast.
// Nothing in here is fatal; the loop must survive any per-tick failure.
func (e *Engine) tick(ctx context.Context) {
	for _, name := range e.tracker.Services() {
		start := time.Now()
		healthy, metadata := e.checker.Check(ctx, name)
		e.metrics.RecordProbeResult(name, healthy, time.Since(start))
		e.tracker.RecordHealthCheck(ctx, name, healthy, metadata)
		e.metrics.UpdateServiceStatus(name, healthy)
	}

	report := e.collector.GenerateReport(ctx)
	for _, m := range report.Metrics {
		e.metrics.UpdateMetricStatus(string(m.MetricType), string(m.Status))
	}

	created := e.alerts.EvaluateAndAlert(ctx, report.Metrics)
	for _, alert := range created {
		e.metrics.RecordAlertCreated(string(alert.AlertType))
	}

	active, err := e.alerts.GetActiveAlerts(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to load active alerts for broadcast")
	}

	summary := e.summarize(ctx, report, len(active))
	sent := e.broadcaster.BroadcastUpdate(summary, active)
	e.metrics.RecordBroadcast(sent)
}

// broadcastNow pushes the current state immediately, bypassing the diff check.
func (e *Engine) broadcastNow(ctx context.Context) {
	summary, err := e.GetSystemHealthSummary(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to build summary for immediate broadcast")
		return
	}

	active, err := e.alerts.GetActiveAlerts(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to load active alerts for immediate broadcast")
	}

	e.broadcaster.BroadcastImmediate(summary, active)
	e.metrics.RecordBroadcast(true)
}

// GetSystemHealthSummary builds the headline summary from the latest report.
// A missing report or failed uptime calculation degrades individual fields to
// unknown instead of failing the caller.
func (e *Engine) GetSystemHealthSummary(ctx context.Context) (*HealthSummary, error) {
	report, err := e.store.GetLatestReport(ctx)
	if err != nil {
		logrus.WithError(err).Debug("No report available for summary")
		report = &database.SLAReport{
			OverallStatus: database.StatusUnknown,
			GeneratedAt:   time.Now(),
		}
	}

	active, err := e.alerts.GetActiveAlerts(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to count active alerts")
	}

	return e.summarize(ctx, report, len(active)), nil
}

func (e *Engine) summarize(ctx context.Context, report *database.SLAReport, activeAlerts int) *HealthSummary {
	healthy, warning, critical := CountByStatus(report.Metrics)
	total := len(report.Metrics)

	summary := &HealthSummary{
		OverallStatus:   report.OverallStatus,
		HealthyMetrics:  healthy,
		WarningMetrics:  warning,
		CriticalMetrics: critical,
		TotalMetrics:    total,
		ActiveAlerts:    activeAlerts,
		UptimeStatus:    "unknown",
		LastUpdated:     report.GeneratedAt,
	}
	if total > 0 {
		summary.HealthPercentage = float64(healthy) / float64(total) * 100.0
	}

	now := time.Now()
	overall, err := e.calc.CalculateOverall(ctx, e.tracker.Services(), now.Add(-e.config.Monitoring.UptimeWindow), now)
	if err != nil {
		logrus.WithError(err).Error("Uptime calculation failed for summary")
		return summary
	}

	summary.UptimePercentage = overall.UptimePercentage
	summary.UptimeStatus = uptimeStatusOf(overall.UptimePercentage)
	uptimeSeconds := e.config.Monitoring.UptimeWindow.Seconds() - overall.TotalDowntimeSeconds
	summary.UptimeDuration = formatDuration(time.Duration(uptimeSeconds) * time.Second)

	return summary
}

// GetSystemHealthReport returns the latest persisted report snapshot.
func (e *Engine) GetSystemHealthReport(ctx context.Context) (*database.SLAReport, error) {
	return e.store.GetLatestReport(ctx)
}

// GetActiveAlerts returns all unresolved alerts.
func (e *Engine) GetActiveAlerts(ctx context.Context) ([]database.SLAAlert, error) {
	return e.alerts.GetActiveAlerts(ctx)
}

// AcknowledgeAlert marks an alert acknowledged; false means no such alert or
// already acknowledged.
func (e *Engine) AcknowledgeAlert(ctx context.Context, alertID, userID string) bool {
	return e.alerts.Acknowledge(ctx, alertID, userID)
}

// ResolveAlert marks an alert resolved, independent of acknowledgement.
func (e *Engine) ResolveAlert(ctx context.Context, alertID string) bool {
	return e.alerts.Resolve(ctx, alertID)
}

// GetUptimeSummary computes availability over the trailing window of the
// given number of hours, with a per-service breakdown.
func (e *Engine) GetUptimeSummary(ctx context.Context, hours int) (*UptimeSummary, error) {
	now := time.Now()
	window := time.Duration(hours) * time.Hour

	overall, err := e.calc.CalculateOverall(ctx, e.tracker.Services(), now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate uptime: %w", err)
	}

	return &UptimeSummary{
		OverallStatus:        uptimeStatusOf(overall.UptimePercentage),
		UptimePercentage:     overall.UptimePercentage,
		UptimeDuration:       formatDuration(time.Duration(window.Seconds()-overall.TotalDowntimeSeconds) * time.Second),
		DowntimeIncidents:    overall.DowntimeIncidents,
		TotalDowntimeSeconds: overall.TotalDowntimeSeconds,
		Services:             overall.PerService,
		WindowHours:          hours,
		GeneratedAt:          now,
	}, nil
}

// GetRecentIncidents lists downtime intervals over the trailing window,
// newest first. An interval spanning the window start is reported from its
// true start; one still open is reported unresolved.
func (e *Engine) GetRecentIncidents(ctx context.Context, hours, limit int) ([]Incident, error) {
	now := time.Now()
	windowStart := now.Add(-time.Duration(hours) * time.Hour)

	var incidents []Incident

	for _, name := range e.tracker.Services() {
		// An outage already running at the window boundary.
		last, err := e.store.GetLastEventBefore(ctx, name, windowStart, transitionTypes)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch boundary event for %s: %w", name, err)
		}

		var open *Incident
		if last != nil && last.EventType == database.EventDowntimeStart {
			open = &Incident{
				ServiceName: name,
				StartedAt:   last.Timestamp,
				Severity:    last.Severity,
			}
		}

		events, err := e.store.GetEvents(ctx, database.EventFilters{
			ServiceName: name,
			Types:       transitionTypes,
			Since:       &windowStart,
			Until:       &now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch events for %s: %w", name, err)
		}

		for i := range events {
			event := &events[i]
			switch event.EventType {
			case database.EventDowntimeStart:
				open = &Incident{
					ServiceName: name,
					StartedAt:   event.Timestamp,
					Severity:    event.Severity,
				}
			case database.EventDowntimeEnd:
				if open != nil {
					ended := event.Timestamp
					open.EndedAt = &ended
					open.DurationSeconds = ended.Sub(open.StartedAt).Seconds()
					open.Resolved = true
					incidents = append(incidents, *open)
					open = nil
				}
			}
		}

		// Still down as of now.
		if open != nil {
			open.DurationSeconds = now.Sub(open.StartedAt).Seconds()
			incidents = append(incidents, *open)
		}
	}

	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].StartedAt.After(incidents[j].StartedAt)
	})

	if limit > 0 && len(incidents) > limit {
		incidents = incidents[:limit]
	}

	return incidents, nil
}

// ForceHealthCheck triggers one immediate scheduler pass and pushes the
// result out of band.
func (e *Engine) ForceHealthCheck(ctx context.Context) {
	e.scheduler.ForceTick(ctx)
	e.broadcastNow(ctx)
}

// ServiceStates exposes the in-memory runtime state for the API layer.
func (e *Engine) ServiceStates() []ServiceState {
	return e.tracker.Snapshot()
}

// schedulePeriodicPurge runs retention cleanup on a fixed interval.
func (e *Engine) schedulePeriodicPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logrus.Debug("Stopping periodic purge")
				return
			case <-ticker.C:
				if err := e.PurgeRetention(ctx); err != nil {
					logrus.WithError(err).Error("Scheduled purge failed")
				}
			}
		}
	}()

	logrus.WithField("interval", interval).Info("Scheduled periodic retention purge")
}

// PurgeRetention applies the configured retention windows to events, metrics,
// reports, resolved alerts, and expired sessions.
func (e *Engine) PurgeRetention(ctx context.Context) error {
	now := time.Now()
	cfg := e.config.Database

	var errs []error
	purge := func(what string, fn func() (int, error)) {
		deleted, err := fn()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s purge failed: %w", what, err))
			return
		}
		if deleted > 0 {
			logrus.WithFields(logrus.Fields{"what": what, "deleted": deleted}).Info("Retention purge")
		}
	}

	purge("events", func() (int, error) { return e.store.DeleteEventsBefore(ctx, now.Add(-cfg.EventRetention)) })
	purge("metrics", func() (int, error) { return e.store.DeleteMetricsBefore(ctx, now.Add(-cfg.MetricRetention)) })
	purge("reports", func() (int, error) { return e.store.DeleteReportsBefore(ctx, now.Add(-cfg.ReportRetention)) })
	purge("alerts", func() (int, error) { return e.store.DeleteResolvedAlertsBefore(ctx, now.Add(-cfg.AlertRetention)) })
	purge("sessions", func() (int, error) { return e.store.DeleteExpiredSessions(ctx, now) })

	if cfg.CompactOnCleanup {
		if err := e.store.CompactDatabase(ctx); err != nil {
			errs = append(errs, fmt.Errorf("compaction failed: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("purge completed with %d errors, first: %w", len(errs), errs[0])
	}
	return nil
}

func uptimeStatusOf(percentage float64) string {
	switch {
	case percentage >= 99.9:
		return "excellent"
	case percentage >= 99.0:
		return "good"
	case percentage >= 95.0:
		return "degraded"
	default:
		return "poor"
	}
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
