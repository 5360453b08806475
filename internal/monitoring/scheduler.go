// internal/monitoring/scheduler.go
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler drives the health-check and collection loop at a fixed cadence.
// Per-tick errors are logged and the loop continues indefinitely; only
// Stop or context cancellation ends it.
type Scheduler struct {
	tick     func(ctx context.Context)
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// tickMu serializes periodic and forced ticks so a forced run never
	// interleaves with a scheduled one.
	tickMu sync.Mutex
}

func NewScheduler(interval time.Duration, tick func(ctx context.Context)) *Scheduler {
	return &Scheduler{
		tick:     tick,
		interval: interval,
	}
}

// Start launches the background loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	logrus.WithField("interval", s.interval).Info("Starting scheduler")

	s.wg.Add(1)
	go s.run(ctx, s.stopCh)
}

func (s *Scheduler) run(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial pass on startup
	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("Scheduler context cancelled")
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// Stop halts the loop and waits for any in-flight tick to finish, so no
// half-applied transition is left behind. Stopping a stopped scheduler is a
// no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	logrus.Info("Stopping scheduler")
	s.wg.Wait()
}

// ForceTick runs one out-of-cycle pass synchronously without disturbing the
// periodic cadence.
func (s *Scheduler) ForceTick(ctx context.Context) {
	logrus.Debug("Forced scheduler tick")
	s.runTick(ctx)
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runTick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("Scheduler tick panicked")
		}
	}()

	s.tick(ctx)
}
