// internal/monitoring/checker.go
package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"argus/internal/database"
)

// Probe executes one health check for a monitored service.
type Probe interface {
	Name() string
	Check(ctx context.Context) (healthy bool, metadata map[string]interface{})
}

// HealthChecker runs the registered probe for each monitored service. Probe
// failures and panics never escape this boundary; they are converted into an
// unhealthy result with the error captured in metadata.
type HealthChecker struct {
	probes  map[string]Probe
	timeout time.Duration
}

func NewHealthChecker(store database.Store, probeTimeout time.Duration) *HealthChecker {
	dbProbe := &DatabaseProbe{store: store, latencyBudget: probeTimeout}

	checker := &HealthChecker{
		probes:  make(map[string]Probe),
		timeout: probeTimeout,
	}
	checker.Register(&SystemProbe{})
	checker.Register(dbProbe)
	checker.Register(&APIProbe{database: dbProbe})

	logrus.WithField("probes", len(checker.probes)).Info("Registered health probes")
	return checker
}

// Register adds or replaces the probe for a service.
func (h *HealthChecker) Register(probe Probe) {
	h.probes[probe.Name()] = probe
}

// Check runs the probe registered for serviceName.
func (h *HealthChecker) Check(ctx context.Context, serviceName string) (healthy bool, metadata map[string]interface{}) {
	probe, exists := h.probes[serviceName]
	if !exists {
		return false, map[string]interface{}{
			"error": fmt.Sprintf("no probe registered for service: %s", serviceName),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"service": serviceName,
				"panic":   r,
			}).Error("Health probe panicked")
			healthy = false
			metadata = map[string]interface{}{
				"error": fmt.Sprintf("probe panicked: %v", r),
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	return probe.Check(ctx)
}

// SystemProbe reports the process itself: always healthy if this code runs.
type SystemProbe struct{}

func (p *SystemProbe) Name() string {
	return "system"
}

func (p *SystemProbe) Check(ctx context.Context) (bool, map[string]interface{}) {
	return true, map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
	}
}

// DatabaseProbe is healthy when a trivial round-trip query completes inside
// the latency budget.
type DatabaseProbe struct {
	store         database.Store
	latencyBudget time.Duration
}

func (p *DatabaseProbe) Name() string {
	return "database"
}

func (p *DatabaseProbe) Check(ctx context.Context) (bool, map[string]interface{}) {
	start := time.Now()
	err := p.store.Ping(ctx)
	latency := time.Since(start)

	metadata := map[string]interface{}{
		"latency_ms": float64(latency.Microseconds()) / 1000.0,
	}

	if err != nil {
		metadata["error"] = err.Error()
		return false, metadata
	}
	if latency > p.latencyBudget {
		metadata["error"] = fmt.Sprintf("round-trip exceeded latency budget of %s", p.latencyBudget)
		return false, metadata
	}

	return true, metadata
}

// APIProbe stands in for a real HTTP probe: the API serves from the database,
// so its health is derived from the database check.
type APIProbe struct {
	database *DatabaseProbe
}

func (p *APIProbe) Name() string {
	return "api"
}

func (p *APIProbe) Check(ctx context.Context) (bool, map[string]interface{}) {
	healthy, metadata := p.database.Check(ctx)
	metadata["derived_from"] = "database"
	return healthy, metadata
}
