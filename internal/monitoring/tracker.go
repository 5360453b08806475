// internal/monitoring/tracker.go
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"argus/internal/database"
)

// ServiceState is the in-memory runtime state for one monitored service.
// It is rebuilt from scratch on process start and is not durable; durability
// lives in the uptime event log.
type ServiceState struct {
	ServiceName       string     `json:"service_name"`
	IsUp              bool       `json:"is_up"`
	LastCheck         time.Time  `json:"last_check"`
	DowntimeStartedAt *time.Time `json:"downtime_started_at,omitempty"`
}

// StateTracker holds the per-service up/down state machine and is the single
// writer of uptime events. All other components only read the event log.
type StateTracker struct {
	store    database.Store
	services []string
	states   map[string]*ServiceState
	mu       sync.RWMutex
	now      func() time.Time
}

func NewStateTracker(store database.Store, services []string) *StateTracker {
	return &StateTracker{
		store:    store,
		services: services,
		states:   make(map[string]*ServiceState),
		now:      time.Now,
	}
}

// Initialize seeds every monitored service as up and appends one start event
// per service. Called once at process startup.
func (t *StateTracker) Initialize(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, name := range t.services {
		t.states[name] = &ServiceState{
			ServiceName: name,
			IsUp:        true,
			LastCheck:   now,
		}

		event := &database.UptimeEvent{
			EventType:    database.EventStart,
			ServiceName:  name,
			Timestamp:    now,
			Reason:       "monitoring started",
			AutoDetected: true,
		}
		if err := t.store.AppendEvent(ctx, event); err != nil {
			logrus.WithError(err).WithField("service", name).Error("Failed to append start event")
		}
	}

	logrus.WithField("services", len(t.services)).Info("Initialized service state tracker")
}

// RecordHealthCheck feeds one probe result into the state machine. On a
// transition it appends the matching uptime event; unchanged state is a no-op.
func (t *StateTracker) RecordHealthCheck(ctx context.Context, serviceName string, isHealthy bool, metadata map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, exists := t.states[serviceName]
	if !exists {
		logrus.WithField("service", serviceName).Warn("Health check for untracked service")
		return
	}

	now := t.now()
	state.LastCheck = now

	switch {
	case state.IsUp && !isHealthy:
		state.IsUp = false
		state.DowntimeStartedAt = &now

		event := &database.UptimeEvent{
			EventType:    database.EventDowntimeStart,
			ServiceName:  serviceName,
			Timestamp:    now,
			Reason:       reasonFromMetadata(metadata),
			Severity:     downtimeSeverity(serviceName),
			AutoDetected: true,
			Metadata:     metadata,
		}
		// A failed append loses the event but keeps the in-memory
		// transition: live state availability wins over durability here.
		if err := t.store.AppendEvent(ctx, event); err != nil {
			logrus.WithError(err).WithField("service", serviceName).Error("Failed to append downtime_start event")
		}

		logrus.WithFields(logrus.Fields{
			"service":  serviceName,
			"severity": event.Severity,
		}).Warn("Service went down")

	case !state.IsUp && isHealthy:
		var duration time.Duration
		if state.DowntimeStartedAt != nil {
			duration = now.Sub(*state.DowntimeStartedAt)
		}
		state.IsUp = true
		state.DowntimeStartedAt = nil

		event := &database.UptimeEvent{
			EventType:    database.EventDowntimeEnd,
			ServiceName:  serviceName,
			Timestamp:    now,
			Duration:     duration.Seconds(),
			Reason:       "service recovered",
			Severity:     downtimeSeverity(serviceName),
			AutoDetected: true,
			Metadata:     metadata,
		}
		if err := t.store.AppendEvent(ctx, event); err != nil {
			logrus.WithError(err).WithField("service", serviceName).Error("Failed to append downtime_end event")
		}

		logrus.WithFields(logrus.Fields{
			"service":  serviceName,
			"downtime": duration,
		}).Info("Service recovered")
	}
}

// GetState returns a copy of the runtime state for one service.
func (t *StateTracker) GetState(serviceName string) (ServiceState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, exists := t.states[serviceName]
	if !exists {
		return ServiceState{}, false
	}
	return *state, true
}

// Snapshot returns a copy of all service states.
func (t *StateTracker) Snapshot() []ServiceState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make([]ServiceState, 0, len(t.services))
	for _, name := range t.services {
		if state, exists := t.states[name]; exists {
			snapshot = append(snapshot, *state)
		}
	}
	return snapshot
}

// Services returns the monitored service names.
func (t *StateTracker) Services() []string {
	names := make([]string, len(t.services))
	copy(names, t.services)
	return names
}

// downtimeSeverity assigns major to core infrastructure, minor otherwise.
func downtimeSeverity(serviceName string) database.Severity {
	switch serviceName {
	case "system", "database":
		return database.SeverityMajor
	}
	return database.SeverityMinor
}

func reasonFromMetadata(metadata map[string]interface{}) string {
	if metadata != nil {
		if errMsg, ok := metadata["error"].(string); ok && errMsg != "" {
			return errMsg
		}
	}
	return "health check failed"
}
