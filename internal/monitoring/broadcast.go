// internal/monitoring/broadcast.go - Diffed live-update broadcasting
package monitoring

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"argus/internal/database"
)

// DefaultTopic is the push-channel topic dashboards subscribe to.
const DefaultTopic = "sla_monitoring"

// PushChannel is the sink used for live updates. The engine only registers
// observers under a topic and broadcasts JSON-serializable payloads; the
// connection-level protocol lives behind this interface.
type PushChannel interface {
	Broadcast(topic string, payload interface{})
	ConnectionCount(topic string) int
}

// UpdatePayload is the summary pushed to subscribers on each cycle.
type UpdatePayload struct {
	Type        string              `json:"type"`
	Summary     *HealthSummary      `json:"summary"`
	Alerts      []database.SLAAlert `json:"alerts"`
	Connections int                 `json:"connections"`
	SentAt      time.Time           `json:"sent_at"`
}

// snapshot captures only the volatile fields used for diffing; a broadcast
// whose snapshot equals the last one sent is suppressed.
type snapshot struct {
	overallStatus    database.MetricStatus
	healthPercentage float64
	uptimePercentage float64
	healthyCount     int
	warningCount     int
	criticalCount    int
	alertCount       int
	alerts           []alertKey
}

type alertKey struct {
	id           string
	acknowledged bool
}

func snapshotOf(summary *HealthSummary, alerts []database.SLAAlert) snapshot {
	s := snapshot{
		overallStatus:    summary.OverallStatus,
		healthPercentage: summary.HealthPercentage,
		uptimePercentage: summary.UptimePercentage,
		healthyCount:     summary.HealthyMetrics,
		warningCount:     summary.WarningMetrics,
		criticalCount:    summary.CriticalMetrics,
		alertCount:       len(alerts),
		alerts:           make([]alertKey, 0, len(alerts)),
	}
	for _, alert := range alerts {
		s.alerts = append(s.alerts, alertKey{id: alert.ID, acknowledged: alert.Acknowledged})
	}
	return s
}

func (s snapshot) equal(other snapshot) bool {
	if s.overallStatus != other.overallStatus ||
		s.healthPercentage != other.healthPercentage ||
		s.uptimePercentage != other.uptimePercentage ||
		s.healthyCount != other.healthyCount ||
		s.warningCount != other.warningCount ||
		s.criticalCount != other.criticalCount ||
		s.alertCount != other.alertCount {
		return false
	}
	for i := range s.alerts {
		if s.alerts[i] != other.alerts[i] {
			return false
		}
	}
	return true
}

// Broadcaster pushes diffed summary updates to a push-channel topic.
type Broadcaster struct {
	channel PushChannel
	topic   string

	mu       sync.Mutex
	lastSent *snapshot
}

func NewBroadcaster(channel PushChannel, topic string) *Broadcaster {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Broadcaster{
		channel: channel,
		topic:   topic,
	}
}

// BroadcastUpdate pushes the summary unless it is field-wise identical to the
// last payload sent. Returns whether a push happened.
func (b *Broadcaster) BroadcastUpdate(summary *HealthSummary, alerts []database.SLAAlert) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := snapshotOf(summary, alerts)
	if b.lastSent != nil && b.lastSent.equal(current) {
		logrus.Debug("Broadcast suppressed, summary unchanged")
		return false
	}

	b.send(summary, alerts)
	b.lastSent = &current
	return true
}

// BroadcastImmediate bypasses the diff check, used after alert
// acknowledgement and administrative actions.
func (b *Broadcaster) BroadcastImmediate(summary *HealthSummary, alerts []database.SLAAlert) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := snapshotOf(summary, alerts)
	b.send(summary, alerts)
	b.lastSent = &current
}

func (b *Broadcaster) send(summary *HealthSummary, alerts []database.SLAAlert) {
	payload := UpdatePayload{
		Type:        "sla_update",
		Summary:     summary,
		Alerts:      alerts,
		Connections: b.channel.ConnectionCount(b.topic),
		SentAt:      time.Now(),
	}
	b.channel.Broadcast(b.topic, payload)
}
