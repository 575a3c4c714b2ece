// Package scheduler drives fetch cycles for the dashboard.
// It handles:
//   - the fetch cycle on a cron schedule in the market's timezone
//   - manual refreshes, coalesced with any refresh already in flight
//   - a minute heartbeat used to tell a stalled scheduler from a quiet one
//
// Triggers that fire while a cycle is running are skipped, not queued.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"nepse_dashboard/models"
)

// ErrCycleInProgress is returned by RunNow while another cycle is running.
var ErrCycleInProgress = errors.New("scheduler: fetch cycle already in progress")

var errStopped = errors.New("scheduler: stopped")

// Runner runs one fetch cycle over symbols and returns the published snapshot.
type Runner interface {
	Run(ctx context.Context, symbols []string) (*models.Snapshot, error)
}

// Config holds the scheduling parameters.
type Config struct {
	// Cron is a standard 5-field expression evaluated in Location.
	Cron     string
	Location *time.Location
	Symbols  []string
	// CycleBudget is how long a cycle may take before a missing result
	// counts as a missed trigger.
	CycleBudget time.Duration
	RunOnStart  bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now for status bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler manages the scheduled jobs
type Scheduler struct {
	cron     *gocron.Scheduler
	runner   Runner
	cfg      Config
	schedule cron.Schedule
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// running is set for the whole of a cycle, scheduled or manual.
	running atomic.Bool
	skipped atomic.Uint64
	refresh singleflight.Group
	cycles  sync.WaitGroup

	mu            sync.RWMutex
	stopped       bool
	startedAt     time.Time
	lastRun       time.Time
	lastCompleted time.Time
	lastCycleID   string
	lastVersion   uint64
	lastErr       string
	heartbeat     time.Time
}

// New creates a scheduler that runs runner on cfg.Cron.
func New(runner Runner, cfg Config, opts ...Option) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	schedule, err := cron.ParseStandard(cfg.Cron)
	if err != nil {
		return nil, errors.Wrapf(err, "scheduler: invalid cron expression %q", cfg.Cron)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     gocron.NewScheduler(cfg.Location),
		runner:   runner,
		cfg:      cfg,
		schedule: schedule,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the jobs and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	if _, err := s.cron.Cron(s.cfg.Cron).Tag(cycleTag).Do(s.trigger); err != nil {
		return errors.Wrap(err, "scheduler: register fetch cycle")
	}
	if _, err := s.cron.Every(1).Minute().Tag(heartbeatTag).Do(s.beat); err != nil {
		return errors.Wrap(err, "scheduler: register heartbeat")
	}

	s.mu.Lock()
	s.startedAt = s.now()
	s.mu.Unlock()

	s.cron.StartAsync()
	glog.Infof("Scheduler started: %q in %s, next run %s",
		s.cfg.Cron, s.cfg.Location, s.NextRun(s.now()).Format(time.RFC3339))

	if s.cfg.RunOnStart {
		go s.trigger()
	}
	return nil
}

// Stop stops the scheduler, cancels any in-flight cycle and waits for it to
// publish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.cron.Stop()
	s.cycles.Wait()
	glog.Info("Scheduler stopped")
}

// NextRun returns the first scheduled fire time after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	return s.schedule.Next(now.In(s.cfg.Location))
}
