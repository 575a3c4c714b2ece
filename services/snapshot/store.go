// Package snapshot holds the most recently published fetch-cycle Snapshot.
//
// There is one writer, the fetch cycle, and any number of readers. Publish
// swaps a pointer to a fully built, immutable Snapshot, so readers never lock
// and never observe a half-written cycle. Subscribers are told about every
// publish without ever blocking the writer.
package snapshot

import (
	"errors"
	"sync"
	"sync/atomic"

	"nepse_dashboard/models"
)

// ErrNilSnapshot is returned when Publish is called without a snapshot.
var ErrNilSnapshot = errors.New("snapshot: cannot publish nil snapshot")

// CancelFunc ends a subscription and closes its channel.
type CancelFunc func()

// Store provides access to the current Snapshot. The Store is thread-safe.
type Store struct {
	// pmu serializes Publish calls.
	pmu sync.Mutex

	// current is nil until the first Publish.
	current atomic.Pointer[models.Snapshot]

	// smu protects subs and sid.
	smu  sync.Mutex
	subs map[int]chan *models.Snapshot
	sid  int
}

// New creates an empty Store.
func New() *Store {
	return &Store{subs: map[int]chan *models.Snapshot{}}
}

// Publish replaces the current snapshot with snap, stamped with the next
// version. It returns the stored value.
func (s *Store) Publish(snap *models.Snapshot) (*models.Snapshot, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	s.pmu.Lock()
	defer s.pmu.Unlock()

	var version uint64 = 1
	if prev := s.current.Load(); prev != nil {
		version = prev.Version + 1
	}
	stored := snap.WithVersion(version)
	s.current.Store(stored)

	s.cast(stored)
	return stored, nil
}

// Current returns the latest published snapshot. ok is false until the first
// Publish, which callers render as "waiting for first update".
func (s *Store) Current() (snap *models.Snapshot, ok bool) {
	snap = s.current.Load()
	return snap, snap != nil
}

// Subscribe returns a channel that receives each newly published snapshot.
// A slow subscriber only ever has the latest snapshot pending; older pending
// values are replaced.
func (s *Store) Subscribe() (<-chan *models.Snapshot, CancelFunc) {
	ch := make(chan *models.Snapshot, 1)

	s.smu.Lock()
	id := s.sid
	s.sid++
	s.subs[id] = ch
	s.smu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.smu.Lock()
			defer s.smu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// cast hands snap to every subscriber without blocking.
func (s *Store) cast(snap *models.Snapshot) {
	s.smu.Lock()
	defer s.smu.Unlock()

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
