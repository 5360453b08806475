// internal/monitoring/alerts.go - Alert lifecycle management
package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"argus/internal/database"
)

// AlertManager creates, acknowledges, and resolves alerts derived from
// threshold breaches.
type AlertManager struct {
	store database.Store

	// onChange is invoked after an alert mutation to trigger an immediate
	// out-of-band broadcast. Set by the engine during wiring.
	onChange func(ctx context.Context)
}

func NewAlertManager(store database.Store) *AlertManager {
	return &AlertManager{
		store:    store,
		onChange: func(ctx context.Context) {},
	}
}

// SetOnChange registers the callback fired after acknowledge/resolve.
func (am *AlertManager) SetOnChange(fn func(ctx context.Context)) {
	if fn != nil {
		am.onChange = fn
	}
}

// EvaluateAndAlert persists one alert per non-healthy metric. No
// de-duplication against prior open alerts is performed; every collection
// cycle may emit fresh alerts.
func (am *AlertManager) EvaluateAndAlert(ctx context.Context, metrics []database.SLAMetric) []database.SLAAlert {
	var created []database.SLAAlert

	for _, metric := range metrics {
		if metric.Status != database.StatusWarning && metric.Status != database.StatusCritical {
			continue
		}

		threshold := metric.Threshold.WarningThreshold
		if metric.Status == database.StatusCritical {
			threshold = metric.Threshold.CriticalThreshold
		}

		alert := database.SLAAlert{
			AlertType:      metric.Status,
			Title:          fmt.Sprintf("%s %s threshold exceeded", metric.MetricType, metric.Status),
			Message:        fmt.Sprintf("%s is %.2f%s, crossing the %s threshold of %.2f%s", metric.MetricType, metric.Value, metric.Threshold.Unit, metric.Status, threshold, metric.Threshold.Unit),
			MetricType:     metric.MetricType,
			CurrentValue:   metric.Value,
			ThresholdValue: threshold,
			TriggeredAt:    metric.MeasuredAt,
		}

		if err := am.store.InsertAlert(ctx, &alert); err != nil {
			logrus.WithError(err).WithField("metric", metric.MetricType).Error("Failed to persist alert")
			continue
		}
		created = append(created, alert)

		logrus.WithFields(logrus.Fields{
			"metric":    metric.MetricType,
			"value":     metric.Value,
			"threshold": threshold,
			"severity":  metric.Status,
		}).Warn("Alert raised")
	}

	return created
}

// GetActiveAlerts returns all unresolved alerts, newest first.
func (am *AlertManager) GetActiveAlerts(ctx context.Context) ([]database.SLAAlert, error) {
	resolved := false
	return am.store.GetAlerts(ctx, database.AlertFilters{Resolved: &resolved})
}

// Acknowledge marks an alert as acknowledged by a user. Returns false when
// the alert does not exist or was already acknowledged; the stored state is
// unchanged in both cases.
func (am *AlertManager) Acknowledge(ctx context.Context, alertID, userID string) bool {
	alert, err := am.store.GetAlert(ctx, alertID)
	if err != nil {
		logrus.WithError(err).WithField("alert_id", alertID).Debug("Acknowledge of unknown alert")
		return false
	}
	if alert.Acknowledged {
		return false
	}

	now := time.Now()
	alert.Acknowledged = true
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = userID

	if err := am.store.UpdateAlert(ctx, alert); err != nil {
		logrus.WithError(err).WithField("alert_id", alertID).Error("Failed to persist acknowledgement")
		return false
	}

	logrus.WithFields(logrus.Fields{
		"alert_id": alertID,
		"user":     userID,
	}).Info("Alert acknowledged")

	am.onChange(ctx)
	return true
}

// Resolve marks an alert as resolved, independent of acknowledgement.
func (am *AlertManager) Resolve(ctx context.Context, alertID string) bool {
	alert, err := am.store.GetAlert(ctx, alertID)
	if err != nil {
		logrus.WithError(err).WithField("alert_id", alertID).Debug("Resolve of unknown alert")
		return false
	}
	if alert.Resolved {
		return false
	}

	now := time.Now()
	alert.Resolved = true
	alert.ResolvedAt = &now

	if err := am.store.UpdateAlert(ctx, alert); err != nil {
		logrus.WithError(err).WithField("alert_id", alertID).Error("Failed to persist resolution")
		return false
	}

	logrus.WithField("alert_id", alertID).Info("Alert resolved")

	am.onChange(ctx)
	return true
}
