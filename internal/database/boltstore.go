// internal/database/boltstore.go - Complete BoltDB implementation
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	EventsBucket   = []byte("uptime_events")
	MetricsBucket  = []byte("sla_metrics")
	AlertsBucket   = []byte("sla_alerts")
	ReportsBucket  = []byte("sla_reports")
	SessionsBucket = []byte("sessions")
	MetaBucket     = []byte("meta")
)

type BoltStore struct {
	db   *bbolt.DB
	path string
}

func NewBoltStore(path string) (Store, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	store := &BoltStore{db: db, path: path}

	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

func (s *BoltStore) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{EventsBucket, MetricsBucket, AlertsBucket, ReportsBucket, SessionsBucket, MetaBucket}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// eventKey builds the key "<service>:<padded unixnano>:<id>" so that a cursor
// range scan over the service prefix returns events in timestamp order.
func eventKey(serviceName string, ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s:%020d:%s", serviceName, ts.UnixNano(), id))
}

func (s *BoltStore) AppendEvent(ctx context.Context, event *UptimeEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(EventsBucket)

		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		return b.Put(eventKey(event.ServiceName, event.Timestamp, event.ID), data)
	})
}

func (s *BoltStore) GetEvents(ctx context.Context, filters EventFilters) ([]UptimeEvent, error) {
	var events []UptimeEvent

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(EventsBucket)
		c := b.Cursor()

		appendEvent := func(v []byte) error {
			var event UptimeEvent
			if err := json.Unmarshal(v, &event); err != nil {
				return nil // Skip malformed entries
			}
			if !filters.matchesType(event.EventType) {
				return nil
			}
			if filters.Since != nil && event.Timestamp.Before(*filters.Since) {
				return nil
			}
			if filters.Until != nil && event.Timestamp.After(*filters.Until) {
				return nil
			}
			events = append(events, event)
			if filters.Limit > 0 && len(events) >= filters.Limit {
				return errLimitReached
			}
			return nil
		}

		if filters.ServiceName != "" {
			prefix := filters.ServiceName + ":"
			start := []byte(prefix)
			if filters.Since != nil {
				start = []byte(fmt.Sprintf("%s%020d", prefix, filters.Since.UnixNano()))
			}
			for k, v := c.Seek(start); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
				if err := appendEvent(v); err != nil {
					return err
				}
			}
			return nil
		}

		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := appendEvent(v); err != nil {
				return err
			}
		}
		return nil
	})

	if err == errLimitReached {
		err = nil
	}
	if err != nil {
		return nil, err
	}

	// Cross-service scans return events in key order, not time order.
	if filters.ServiceName == "" {
		sort.Slice(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
	}

	return events, nil
}

func (s *BoltStore) GetLastEventBefore(ctx context.Context, serviceName string, before time.Time, types []EventType) (*UptimeEvent, error) {
	var found *UptimeEvent
	filters := EventFilters{Types: types}

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(EventsBucket)
		c := b.Cursor()

		prefix := serviceName + ":"
		// Position the cursor at the first key at or after the cutoff, then
		// walk backwards through the service's range.
		seek := []byte(fmt.Sprintf("%s%020d", prefix, before.UnixNano()))
		k, v := c.Seek(seek)
		if k == nil {
			k, v = c.Last()
		}

		for ; k != nil; k, v = c.Prev() {
			if !strings.HasPrefix(string(k), prefix) {
				if string(k) > string(seek) {
					continue
				}
				break
			}

			var event UptimeEvent
			if err := json.Unmarshal(v, &event); err != nil {
				continue
			}
			if !event.Timestamp.Before(before) {
				continue
			}
			if !filters.matchesType(event.EventType) {
				continue
			}
			found = &event
			break
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *BoltStore) InsertMetrics(ctx context.Context, metrics []SLAMetric) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MetricsBucket)

		for i := range metrics {
			if metrics[i].ID == "" {
				metrics[i].ID = uuid.New().String()
			}

			data, err := json.Marshal(&metrics[i])
			if err != nil {
				return fmt.Errorf("failed to marshal metric: %w", err)
			}

			key := fmt.Sprintf("%020d:%s", metrics[i].MeasuredAt.UnixNano(), metrics[i].ID)
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetMetricsSince(ctx context.Context, since time.Time, limit int) ([]SLAMetric, error) {
	var metrics []SLAMetric

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MetricsBucket)
		c := b.Cursor()

		seek := []byte(fmt.Sprintf("%020d", since.UnixNano()))
		for k, v := c.Seek(seek); k != nil; k, v = c.Next() {
			var metric SLAMetric
			if err := json.Unmarshal(v, &metric); err != nil {
				continue
			}
			metrics = append(metrics, metric)
			if limit > 0 && len(metrics) >= limit {
				return errLimitReached
			}
		}
		return nil
	})

	if err == errLimitReached {
		err = nil
	}
	return metrics, err
}

func (s *BoltStore) InsertAlert(ctx context.Context, alert *SLAAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(AlertsBucket)

		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}

		return b.Put([]byte(alert.ID), data)
	})
}

func (s *BoltStore) GetAlert(ctx context.Context, id string) (*SLAAlert, error) {
	var alert SLAAlert

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(AlertsBucket)
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("alert not found")
		}
		return json.Unmarshal(v, &alert)
	})

	if err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *BoltStore) GetAlerts(ctx context.Context, filters AlertFilters) ([]SLAAlert, error) {
	var alerts []SLAAlert

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(AlertsBucket)
		return b.ForEach(func(k, v []byte) error {
			var alert SLAAlert
			if err := json.Unmarshal(v, &alert); err != nil {
				return nil // Skip malformed entries
			}

			// Apply filters
			if filters.Resolved != nil && alert.Resolved != *filters.Resolved {
				return nil
			}
			if filters.Acknowledged != nil && alert.Acknowledged != *filters.Acknowledged {
				return nil
			}
			if filters.Since != nil && alert.TriggeredAt.Before(*filters.Since) {
				return nil
			}

			alerts = append(alerts, alert)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	// Newest first; the bucket iterates in ID order.
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].TriggeredAt.After(alerts[j].TriggeredAt)
	})

	if filters.Limit > 0 && len(alerts) > filters.Limit {
		alerts = alerts[:filters.Limit]
	}

	return alerts, nil
}

func (s *BoltStore) UpdateAlert(ctx context.Context, alert *SLAAlert) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(AlertsBucket)

		if b.Get([]byte(alert.ID)) == nil {
			return fmt.Errorf("alert not found")
		}

		data, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("failed to marshal alert: %w", err)
		}

		return b.Put([]byte(alert.ID), data)
	})
}

func (s *BoltStore) InsertReport(ctx context.Context, report *SLAReport) error {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ReportsBucket)

		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}

		key := fmt.Sprintf("%020d:%s", report.GeneratedAt.UnixNano(), report.ID)
		return b.Put([]byte(key), data)
	})
}

func (s *BoltStore) GetLatestReport(ctx context.Context) (*SLAReport, error) {
	var report *SLAReport

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(ReportsBucket)
		c := b.Cursor()

		if k, v := c.Last(); k != nil {
			var r SLAReport
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("failed to unmarshal report: %w", err)
			}
			report = &r
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("no reports stored")
	}
	return report, nil
}

func (s *BoltStore) PutSession(ctx context.Context, session *Session) error {
	if session.Token == "" {
		session.Token = uuid.New().String()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(SessionsBucket)

		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		return b.Put([]byte(session.Token), data)
	})
}

func (s *BoltStore) DeleteSession(ctx context.Context, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(SessionsBucket)
		return b.Delete([]byte(token))
	})
}

// CountActiveSessions counts distinct users with session activity since the
// given time.
func (s *BoltStore) CountActiveSessions(ctx context.Context, activeSince time.Time) (int, error) {
	users := make(map[string]bool)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(SessionsBucket)
		return b.ForEach(func(k, v []byte) error {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				return nil
			}
			if session.LastSeen.Before(activeSince) {
				return nil
			}
			users[session.UserID] = true
			return nil
		})
	})

	return len(users), err
}

// CountValidSessions counts distinct users holding non-expired session tokens.
func (s *BoltStore) CountValidSessions(ctx context.Context, now time.Time) (int, error) {
	users := make(map[string]bool)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(SessionsBucket)
		return b.ForEach(func(k, v []byte) error {
			var session Session
			if err := json.Unmarshal(v, &session); err != nil {
				return nil
			}
			if !session.ExpiresAt.After(now) {
				return nil
			}
			users[session.UserID] = true
			return nil
		})
	})

	return len(users), err
}

// Ping performs a trivial read transaction against the meta bucket.
func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(MetaBucket) == nil {
			return fmt.Errorf("meta bucket missing")
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var errLimitReached = fmt.Errorf("limit_reached")
