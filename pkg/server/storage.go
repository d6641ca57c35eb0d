package server

import (
	"context"
	"sync"
	"time"

	"github.com/appenmapper/appenmapper/pkg/job"
)

// Run is a completed mapping kept for download.
type Run struct {
	Outcome  *job.Outcome
	Owner    string
	Master   string
	Target   string
	Finished time.Time
}

// RunStore keeps completed runs in memory until they expire. Everything is
// lost on restart.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
	ttl  time.Duration
	now  func() time.Time
}

// NewRunStore creates a store. A non-positive ttl keeps runs until Delete.
func NewRunStore(ttl time.Duration) *RunStore {
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores a run under its outcome ID.
func (s *RunStore) Put(run *Run) {
	if run.Finished.IsZero() {
		run.Finished = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.Outcome.ID] = run
}

// Get retrieves a live run by ID.
func (s *RunStore) Get(id string) (*Run, bool) {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok || s.expired(run) {
		return nil, false
	}
	return run, true
}

// Delete removes a run.
func (s *RunStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, id)
}

// Count returns the number of stored runs, expired ones included until the
// next Cleanup.
func (s *RunStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Cleanup removes expired runs.
func (s *RunStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, run := range s.runs {
		if s.expired(run) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed
}

// Janitor calls fn every interval until ctx is done.
func Janitor(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (s *RunStore) expired(run *Run) bool {
	return s.ttl > 0 && s.now().Sub(run.Finished) > s.ttl
}
