package monitoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"argus/internal/database"
)

// fakeStore is an in-memory database.Store with per-method error injection.
type fakeStore struct {
	mu       sync.Mutex
	events   []database.UptimeEvent
	metrics  []database.SLAMetric
	alerts   map[string]*database.SLAAlert
	reports  []database.SLAReport
	sessions map[string]*database.Session

	appendErr error
	pingErr   error
	insertErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		alerts:   make(map[string]*database.SLAAlert),
		sessions: make(map[string]*database.Session),
	}
}

func (s *fakeStore) AppendEvent(ctx context.Context, event *database.UptimeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appendErr != nil {
		return s.appendErr
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if err := event.Validate(); err != nil {
		return err
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *fakeStore) GetEvents(ctx context.Context, filters database.EventFilters) ([]database.UptimeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []database.UptimeEvent
	for _, e := range s.events {
		if filters.ServiceName != "" && e.ServiceName != filters.ServiceName {
			continue
		}
		if !matchesType(filters.Types, e.EventType) {
			continue
		}
		if filters.Since != nil && e.Timestamp.Before(*filters.Since) {
			continue
		}
		if filters.Until != nil && e.Timestamp.After(*filters.Until) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (s *fakeStore) GetLastEventBefore(ctx context.Context, serviceName string, before time.Time, types []database.EventType) (*database.UptimeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *database.UptimeEvent
	for i := range s.events {
		e := s.events[i]
		if e.ServiceName != serviceName || !e.Timestamp.Before(before) {
			continue
		}
		if !matchesType(types, e.EventType) {
			continue
		}
		if found == nil || e.Timestamp.After(found.Timestamp) {
			found = &s.events[i]
		}
	}
	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

func matchesType(types []database.EventType, t database.EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

func (s *fakeStore) InsertMetrics(ctx context.Context, metrics []database.SLAMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}
	s.metrics = append(s.metrics, metrics...)
	return nil
}

func (s *fakeStore) GetMetricsSince(ctx context.Context, since time.Time, limit int) ([]database.SLAMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []database.SLAMetric
	for _, m := range s.metrics {
		if m.MeasuredAt.Before(since) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) InsertAlert(ctx context.Context, alert *database.SLAAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	copied := *alert
	s.alerts[alert.ID] = &copied
	return nil
}

func (s *fakeStore) GetAlert(ctx context.Context, id string) (*database.SLAAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, exists := s.alerts[id]
	if !exists {
		return nil, fmt.Errorf("alert not found")
	}
	copied := *alert
	return &copied, nil
}

func (s *fakeStore) GetAlerts(ctx context.Context, filters database.AlertFilters) ([]database.SLAAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []database.SLAAlert
	for _, alert := range s.alerts {
		if filters.Resolved != nil && alert.Resolved != *filters.Resolved {
			continue
		}
		if filters.Acknowledged != nil && alert.Acknowledged != *filters.Acknowledged {
			continue
		}
		if filters.Since != nil && alert.TriggeredAt.Before(*filters.Since) {
			continue
		}
		out = append(out, *alert)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (s *fakeStore) UpdateAlert(ctx context.Context, alert *database.SLAAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	if _, exists := s.alerts[alert.ID]; !exists {
		return fmt.Errorf("alert not found")
	}
	copied := *alert
	s.alerts[alert.ID] = &copied
	return nil
}

func (s *fakeStore) InsertReport(ctx context.Context, report *database.SLAReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	s.reports = append(s.reports, *report)
	return nil
}

func (s *fakeStore) GetLatestReport(ctx context.Context) (*database.SLAReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.reports) == 0 {
		return nil, fmt.Errorf("no reports stored")
	}
	report := s.reports[len(s.reports)-1]
	return &report, nil
}

func (s *fakeStore) PutSession(ctx context.Context, session *database.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.Token == "" {
		session.Token = uuid.New().String()
	}
	copied := *session
	s.sessions[session.Token] = &copied
	return nil
}

func (s *fakeStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *fakeStore) CountActiveSessions(ctx context.Context, activeSince time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[string]bool)
	for _, session := range s.sessions {
		if session.LastSeen.Before(activeSince) {
			continue
		}
		users[session.UserID] = true
	}
	return len(users), nil
}

func (s *fakeStore) CountValidSessions(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[string]bool)
	for _, session := range s.sessions {
		if !session.ExpiresAt.After(now) {
			continue
		}
		users[session.UserID] = true
	}
	return len(users), nil
}

func (s *fakeStore) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *fakeStore) Close() error {
	return nil
}

func (s *fakeStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *fakeStore) lastEvent() database.UptimeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

// fakePush records broadcasts for assertion.
type fakePush struct {
	mu          sync.Mutex
	payloads    []interface{}
	connections int
}

func (p *fakePush) Broadcast(topic string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
}

func (p *fakePush) ConnectionCount(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connections
}

func (p *fakePush) sent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}
