// Package scheduler starts the daily assembly at the configured time.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/vidyalaya/prayerbell/prayer"
)

// Starter runs an assembly session.
type Starter interface {
	StartSession(ctx context.Context, s prayer.Schedule) error
}

// Scheduler owns a single daily cron entry.
type Scheduler struct {
	cron    *cron.Cron
	starter Starter

	mu       sync.Mutex
	entry    cron.EntryID
	schedule prayer.Schedule
	active   bool

	logger *log.Logger
}

// New creates a scheduler in loc (time.Local when nil).
func New(starter Starter, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		starter: starter,
		logger:  log.WithPrefix("scheduler"),
	}
}

// Start runs the cron loop.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the cron loop and waits for a running job.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

// Apply replaces the daily entry. Schedules that are disabled or not set to
// auto start leave no entry.
func (s *Scheduler) Apply(sched prayer.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.cron.Remove(s.entry)
		s.active = false
	}
	if !sched.Enabled || !sched.AutoStart {
		s.logger.Debug("Daily session cleared")
		return nil
	}

	spec, err := Spec(sched.Time)
	if err != nil {
		return err
	}
	sched = sched.Clone()
	id, err := s.cron.AddFunc(spec, func() { s.run(sched) })
	if err != nil {
		return fmt.Errorf("unable to schedule %q: %w", sched.Time, err)
	}
	s.entry = id
	s.schedule = sched
	s.active = true
	s.logger.Info("Daily session scheduled", "time", sched.Time)
	return nil
}

// Next returns the next run, if an entry exists.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return time.Time{}, false
	}
	return s.cron.Entry(s.entry).Next, true
}

func (s *Scheduler) run(sched prayer.Schedule) {
	s.logger.Info("Starting scheduled session", "time", sched.Time)
	if err := s.starter.StartSession(context.Background(), sched); err != nil {
		s.logger.Error("Scheduled session failed", "err", err)
	}
}

// Spec converts "HH:MM" into a daily cron spec.
func Spec(hhmm string) (string, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return "", fmt.Errorf("invalid time %q: want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 || len(h) > 2 {
		return "", fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return "", fmt.Errorf("invalid minute in %q", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
