package scheduler

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"nepse_dashboard/models"
)

const (
	cycleTag     = "fetch-cycle"
	heartbeatTag = "heartbeat"
	refreshKey   = "refresh"
)

// trigger is the scheduled fetch cycle job.
func (s *Scheduler) trigger() {
	if !s.running.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		glog.Warningf("Scheduled trigger skipped: cycle still running (%d skipped so far)", n)
		return
	}
	defer s.running.Store(false)

	if _, err := s.runCycle("scheduled"); err != nil && !errors.Is(err, errStopped) {
		glog.Errorf("Scheduled fetch cycle failed: %v", err)
	}
}

// RunNow runs a fetch cycle immediately and returns its snapshot. Concurrent
// callers share one cycle. If a scheduled cycle is running it returns
// ErrCycleInProgress. Cancelling ctx stops the wait, not the cycle.
func (s *Scheduler) RunNow(ctx context.Context) (*models.Snapshot, error) {
	ch := s.refresh.DoChan(refreshKey, func() (any, error) {
		if !s.running.CompareAndSwap(false, true) {
			return nil, ErrCycleInProgress
		}
		defer s.running.Store(false)
		return s.runCycle("manual")
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Snapshot), nil
	}
}

// Running reports whether a cycle is in flight.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) runCycle(kind string) (*models.Snapshot, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, errStopped
	}
	s.cycles.Add(1)
	s.lastRun = s.now()
	s.mu.Unlock()
	defer s.cycles.Done()

	glog.Infof("Starting %s fetch cycle for %d symbols", kind, len(s.cfg.Symbols))
	start := time.Now()
	snap, err := s.runner.Run(s.ctx, s.cfg.Symbols)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err.Error()
		return nil, err
	}
	s.lastErr = ""
	s.lastCompleted = s.now()
	s.lastCycleID = snap.CycleID
	s.lastVersion = snap.Version
	glog.Infof("Finished %s fetch cycle %s in %v", kind, snap.CycleID, time.Since(start).Round(time.Millisecond))
	return snap, nil
}

func (s *Scheduler) beat() {
	s.mu.Lock()
	s.heartbeat = s.now()
	s.mu.Unlock()
}
