package models

import (
	"encoding/json"
	"time"
)

// Snapshot is the immutable, fully populated result set of one fetch cycle.
// Results are only reachable through read accessors so a published Snapshot
// cannot be changed by its readers.
type Snapshot struct {
	Version     uint64
	CycleID     string
	StartedAt   time.Time
	CompletedAt time.Time

	order   []string
	results map[string]ScoreResult
}

// NewSnapshot builds a Snapshot from per-symbol results. When a symbol
// appears more than once the first result wins.
func NewSnapshot(cycleID string, startedAt, completedAt time.Time, results []ScoreResult) *Snapshot {
	s := &Snapshot{
		CycleID:     cycleID,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		order:       make([]string, 0, len(results)),
		results:     make(map[string]ScoreResult, len(results)),
	}
	for _, r := range results {
		if _, ok := s.results[r.Symbol]; ok {
			continue
		}
		s.order = append(s.order, r.Symbol)
		s.results[r.Symbol] = r.clone()
	}
	return s
}

// WithVersion returns a copy of the snapshot stamped with version. The
// underlying results are shared; they are never written after construction.
func (s *Snapshot) WithVersion(version uint64) *Snapshot {
	cp := *s
	cp.Version = version
	return &cp
}

// Len returns the number of symbols in the snapshot
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Get returns the result for symbol
func (s *Snapshot) Get(symbol string) (ScoreResult, bool) {
	if s == nil {
		return ScoreResult{}, false
	}
	r, ok := s.results[symbol]
	if !ok {
		return ScoreResult{}, false
	}
	return r.clone(), true
}

// Symbols returns the snapshot's symbols in cycle order
func (s *Snapshot) Symbols() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Results returns a copy of every result in cycle order
func (s *Snapshot) Results() []ScoreResult {
	if s == nil {
		return nil
	}
	out := make([]ScoreResult, 0, len(s.order))
	for _, sym := range s.order {
		out = append(out, s.results[sym].clone())
	}
	return out
}

// Counts returns the number of scored, failed and degraded results
func (s *Snapshot) Counts() (ok, failed, degraded int) {
	if s == nil {
		return 0, 0, 0
	}
	for _, r := range s.results {
		switch {
		case r.Failed():
			failed++
		case r.Degraded():
			ok++
			degraded++
		default:
			ok++
		}
	}
	return ok, failed, degraded
}

// MarshalJSON renders the snapshot as an object keyed by symbol. A nil
// snapshot renders as {}.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.results)
}
