// Package schedule triggers periodic device refreshes.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// MinInterval is the shortest refresh period. Shorter intervals are raised to it.
const MinInterval = time.Second

// Refresher is satisfied by the coordinator.
type Refresher interface {
	Refresh()
}

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Scheduler calls Refresh on a fixed "@every" cron schedule.
type Scheduler struct {
	target Refresher
	logger Logger

	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	interval time.Duration
	started  bool
}

// New creates a Scheduler. Call Start to begin ticking.
func New(target Refresher, interval time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		target: target,
		logger: noopLogger{},
		cron:   cron.New(),
	}
	if err := s.schedule(interval); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Interval returns the effective refresh interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Start begins running the schedule.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("refresh schedule started", "interval", s.interval.String())
}

// Stop halts the schedule and waits for a running tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// Reschedule replaces the interval, e.g. after the settings file is reloaded.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	return s.schedule(interval)
}

func (s *Scheduler) schedule(interval time.Duration) error {
	interval = Normalise(interval)

	spec, err := cron.ParseStandard("@every " + interval.String())
	if err != nil {
		return fmt.Errorf("parsing refresh schedule: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != 0 {
		if interval == s.interval {
			return nil
		}
		s.cron.Remove(s.entry)
	}
	s.entry = s.cron.Schedule(spec, cron.FuncJob(s.tick))
	s.interval = interval
	return nil
}

func (s *Scheduler) tick() {
	s.logger.Debug("scheduled refresh")
	s.target.Refresh()
}

// Normalise rounds interval to whole seconds, never below MinInterval.
func Normalise(interval time.Duration) time.Duration {
	if interval < MinInterval {
		return MinInterval
	}
	return interval.Round(time.Second)
}
