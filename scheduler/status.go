package scheduler

import "time"

// Status is a point-in-time view of the scheduler.
type Status struct {
	Schedule        string     `json:"schedule"`
	Timezone        string     `json:"timezone"`
	Running         bool       `json:"running"`
	Stale           bool       `json:"stale"`
	StartedAt       time.Time  `json:"started_at"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	LastCompleted   *time.Time `json:"last_completed,omitempty"`
	LastCycleID     string     `json:"last_cycle_id,omitempty"`
	LastVersion     uint64     `json:"last_version,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	PreviousFire    *time.Time `json:"previous_fire,omitempty"`
	NextRun         time.Time  `json:"next_run"`
	Heartbeat       *time.Time `json:"heartbeat,omitempty"`
	SkippedTriggers uint64     `json:"skipped_triggers"`
}

// Status reports the scheduler state as of now.
//
// Stale is set once a fire time since Start has passed by more than the
// cycle budget without a cycle completing after it.
func (s *Scheduler) Status(now time.Time) Status {
	s.mu.RLock()
	st := Status{
		Schedule:        s.cfg.Cron,
		Timezone:        s.cfg.Location.String(),
		Running:         s.running.Load(),
		StartedAt:       s.startedAt,
		LastRun:         timePtr(s.lastRun),
		LastCompleted:   timePtr(s.lastCompleted),
		LastCycleID:     s.lastCycleID,
		LastVersion:     s.lastVersion,
		LastError:       s.lastErr,
		NextRun:         s.NextRun(now),
		Heartbeat:       timePtr(s.heartbeat),
		SkippedTriggers: s.skipped.Load(),
	}
	startedAt, lastCompleted := s.startedAt, s.lastCompleted
	s.mu.RUnlock()

	prev := s.PreviousFire(now)
	st.PreviousFire = timePtr(prev)
	if prev.IsZero() || startedAt.IsZero() || prev.Before(startedAt) {
		return st
	}
	st.Stale = !now.Before(prev.Add(s.cfg.CycleBudget)) && lastCompleted.Before(prev)
	return st
}

// maxLookback bounds the search for the previous fire time.
const maxLookback = 400 * 24 * time.Hour

// PreviousFire returns the latest scheduled fire time at or before now, or
// the zero time if there is none within a year.
func (s *Scheduler) PreviousFire(now time.Time) time.Time {
	now = now.In(s.cfg.Location)
	for window := time.Hour; window <= 2*maxLookback; window *= 2 {
		var prev time.Time
		for t := s.schedule.Next(now.Add(-window)); !t.IsZero() && !t.After(now); t = s.schedule.Next(t) {
			prev = t
		}
		if !prev.IsZero() {
			return prev
		}
	}
	return time.Time{}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
