// Package schedule fires the nightly run at the window start hour.
package schedule

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers one run per night and refuses to overlap runs.
// The last-run marker starts at construction time, so a daemon started
// mid-day waits for the coming night instead of firing a catch-up run.
type Scheduler struct {
	spec     cron.Schedule
	lastRun  time.Time
	running  bool
	mu       sync.Mutex
	now      func() time.Time
	tick     time.Duration
	stopChan chan struct{}
}

func New(startHour int, now func() time.Time) (*Scheduler, error) {
	if now == nil {
		now = time.Now
	}
	if startHour < 0 || startHour > 23 {
		return nil, fmt.Errorf("start hour %d out of range", startHour)
	}

	spec, err := ParseCron(fmt.Sprintf("0 %d * * *", startHour))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		spec:     spec,
		lastRun:  now(),
		now:      now,
		tick:     time.Minute,
		stopChan: make(chan struct{}),
	}, nil
}

// ParseCron parses a standard five-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() time.Time {
	return s.spec.Next(s.now())
}

// ShouldRun returns true if a nightly run is due and none is active
func (s *Scheduler) ShouldRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	return s.now().After(s.spec.Next(s.lastRun))
}

// MarkRunning marks a nightly run as currently active
func (s *Scheduler) MarkRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

// MarkComplete marks the active run as finished
func (s *Scheduler) MarkComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = s.now()
}

// Start begins the scheduler loop and blocks until Stop is called.
func (s *Scheduler) Start(runFunc func() error) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if !s.ShouldRun() {
				continue
			}
			s.MarkRunning()
			go func() {
				if err := runFunc(); err != nil {
					log.Printf("[schedule] nightly run failed: %v", err)
				}
				s.MarkComplete()
			}()
		}
	}
}

// Stop stops the scheduler loop
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
