// internal/monitoring/uptime.go
package monitoring

import (
	"context"
	"fmt"
	"time"

	"argus/internal/database"
)

// UptimeStats is the result of an uptime calculation over one window.
type UptimeStats struct {
	UptimePercentage     float64 `json:"uptime_percentage"`
	UptimeSeconds        float64 `json:"uptime_seconds"`
	TotalDowntimeSeconds float64 `json:"total_downtime_seconds"`
	DowntimeIncidents    int     `json:"downtime_incidents"`
}

// OverallUptime aggregates per-service stats across all monitored services.
// The headline percentage is the worst service's percentage; downtime and
// incident counts are summed.
type OverallUptime struct {
	UptimePercentage     float64                `json:"uptime_percentage"`
	TotalDowntimeSeconds float64                `json:"total_downtime_seconds"`
	DowntimeIncidents    int                    `json:"downtime_incidents"`
	PerService           map[string]UptimeStats `json:"per_service"`
}

var transitionTypes = []database.EventType{database.EventDowntimeStart, database.EventDowntimeEnd}

// UptimeCalculator replays the uptime event log to compute availability
// statistics over arbitrary windows.
type UptimeCalculator struct {
	store database.Store
}

func NewUptimeCalculator(store database.Store) *UptimeCalculator {
	return &UptimeCalculator{store: store}
}

// Calculate computes uptime statistics for one service over [windowStart,
// windowEnd]. The log may hold an unmatched downtime_start both before the
// window and inside it; both mean the service is still down.
func (c *UptimeCalculator) Calculate(ctx context.Context, serviceName string, windowStart, windowEnd time.Time) (UptimeStats, error) {
	if !windowEnd.After(windowStart) {
		return UptimeStats{}, fmt.Errorf("window end must be after window start")
	}

	var (
		totalDowntime        time.Duration
		incidentCount        int
		currentDowntimeStart *time.Time
	)

	// State spanning the left window boundary: if the last transition before
	// the window was a downtime_start, the service enters the window down.
	last, err := c.store.GetLastEventBefore(ctx, serviceName, windowStart, transitionTypes)
	if err != nil {
		return UptimeStats{}, fmt.Errorf("failed to fetch boundary event: %w", err)
	}
	if last != nil && last.EventType == database.EventDowntimeStart {
		start := windowStart
		currentDowntimeStart = &start
		incidentCount = 1
	}

	events, err := c.store.GetEvents(ctx, database.EventFilters{
		ServiceName: serviceName,
		Types:       transitionTypes,
		Since:       &windowStart,
		Until:       &windowEnd,
	})
	if err != nil {
		return UptimeStats{}, fmt.Errorf("failed to fetch window events: %w", err)
	}

	for i := range events {
		event := &events[i]
		switch event.EventType {
		case database.EventDowntimeStart:
			ts := event.Timestamp
			currentDowntimeStart = &ts
			incidentCount++
		case database.EventDowntimeEnd:
			if currentDowntimeStart != nil {
				totalDowntime += event.Timestamp.Sub(*currentDowntimeStart)
				currentDowntimeStart = nil
			}
		}
	}

	// Downtime still open at the right boundary: the service is down as of
	// windowEnd.
	if currentDowntimeStart != nil {
		totalDowntime += windowEnd.Sub(*currentDowntimeStart)
	}

	windowSeconds := windowEnd.Sub(windowStart).Seconds()
	uptimeSeconds := windowSeconds - totalDowntime.Seconds()
	percentage := clampPercentage(uptimeSeconds / windowSeconds * 100.0)

	return UptimeStats{
		UptimePercentage:     percentage,
		UptimeSeconds:        uptimeSeconds,
		TotalDowntimeSeconds: totalDowntime.Seconds(),
		DowntimeIncidents:    incidentCount,
	}, nil
}

// CalculateOverall computes per-service stats and the system-wide aggregate.
func (c *UptimeCalculator) CalculateOverall(ctx context.Context, services []string, windowStart, windowEnd time.Time) (OverallUptime, error) {
	overall := OverallUptime{
		UptimePercentage: 100.0,
		PerService:       make(map[string]UptimeStats, len(services)),
	}

	for _, name := range services {
		stats, err := c.Calculate(ctx, name, windowStart, windowEnd)
		if err != nil {
			return OverallUptime{}, fmt.Errorf("failed to calculate uptime for %s: %w", name, err)
		}

		overall.PerService[name] = stats
		overall.TotalDowntimeSeconds += stats.TotalDowntimeSeconds
		overall.DowntimeIncidents += stats.DowntimeIncidents
		if stats.UptimePercentage < overall.UptimePercentage {
			overall.UptimePercentage = stats.UptimePercentage
		}
	}

	return overall, nil
}

func clampPercentage(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
