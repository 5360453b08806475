// internal/metrics/prometheus.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics
var (
	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "argus_probe_duration_seconds",
			Help:    "Time spent executing health probes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_probes_total",
			Help: "Total number of health probes executed",
		},
		[]string{"service", "result"},
	)

	ServiceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "argus_service_up",
			Help: "Current service state (1=up, 0=down)",
		},
		[]string{"service"},
	)

	MetricStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "argus_metric_status",
			Help: "Current metric classification (0=healthy, 1=warning, 2=critical, 3=unknown)",
		},
		[]string{"metric_type"},
	)

	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_alerts_created_total",
			Help: "Total alerts raised from threshold breaches",
		},
		[]string{"severity"},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_broadcasts_total",
			Help: "Broadcast cycles, split by whether a push was sent or suppressed",
		},
		[]string{"outcome"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "argus_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)
)

type Collector struct{}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordProbeResult(service string, healthy bool, duration time.Duration) {
	result := resultLabel(healthy)
	ProbeDuration.WithLabelValues(service, result).Observe(duration.Seconds())
	ProbesTotal.WithLabelValues(service, result).Inc()
}

func (c *Collector) UpdateServiceStatus(service string, up bool) {
	value := 0.0
	if up {
		value = 1.0
	}
	ServiceUp.WithLabelValues(service).Set(value)
}

func (c *Collector) UpdateMetricStatus(metricType, status string) {
	MetricStatus.WithLabelValues(metricType).Set(statusValue(status))
}

func (c *Collector) RecordAlertCreated(severity string) {
	AlertsCreated.WithLabelValues(severity).Inc()
}

func (c *Collector) RecordBroadcast(sent bool) {
	outcome := "suppressed"
	if sent {
		outcome = "sent"
	}
	BroadcastsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordWebSocketConnection(delta int) {
	WebSocketConnections.Add(float64(delta))
}

func resultLabel(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

func statusValue(status string) float64 {
	switch status {
	case "healthy":
		return 0
	case "warning":
		return 1
	case "critical":
		return 2
	default:
		return 3
	}
}
