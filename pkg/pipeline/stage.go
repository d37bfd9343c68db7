// Copyright © 2024 Timothy E. Peoples

package pipeline

import (
	"sync"
	"time"
)

// A stage runs a fixed pool of exactly capacity coroutines, each executing
// its own independent Recv -> sfunc -> Send loop directly against a pair of
// shared corobus channel ids (see (*stage).spawn in channels.go). This pool
// size never changes over the stage's lifetime once spawned; Resize changes
// only the capacity reported through StageMetrics.
//
// A worker is only ever accounted for twice: once when it starts its loop
// and once when it retires. There is no per-item admission gate here -- the
// pool is sized once, at spawn time, and every worker runs until its input
// channel closes -- so the bookkeeping below is a running tally, not a
// blocking coordination point.
type stage struct {
	name     string
	capacity int
	sfunc    StageFunc

	mu         sync.Mutex
	reportCap  int
	active     int
	finished   int
	activeTime time.Duration
}

func newStage(name string, capacity int, sfunc StageFunc) *stage {
	return &stage{
		name:      name,
		capacity:  capacity,
		sfunc:     sfunc,
		reportCap: capacity,
	}
}

// enter records a worker beginning its receive loop and returns the time it
// started, to be handed back to leave on retirement.
func (s *stage) enter() time.Time {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()

	return time.Now()
}

// leave records a worker's retirement, folding the time since started into
// the stage's accumulated active time.
func (s *stage) leave(started time.Time) {
	s.mu.Lock()
	s.active--
	s.finished++
	s.activeTime += time.Since(started)
	s.mu.Unlock()
}

// resize updates the stage's reported capacity and returns the previous
// value. It affects only StageMetrics -- the number of coroutines actually
// running the stage is fixed at spawn time to the capacity given to Add.
func (s *stage) resize(newcap int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.reportCap
	s.reportCap = newcap
	return prev
}

// StageMetrics is a point-in-time snapshot of a pipeline stage's worker
// accounting.
type StageMetrics struct {
	Timestamp  time.Time     // time these metrics were gathered
	Capacity   int           // stage's reported capacity (see Resize)
	Active     int           // number of workers currently in their loop
	Finished   int           // number of workers that have retired
	ActiveTime time.Duration // total accumulated time across all workers' loops
}

func (s *stage) metrics() StageMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StageMetrics{
		Timestamp:  time.Now(),
		Capacity:   s.reportCap,
		Active:     s.active,
		Finished:   s.finished,
		ActiveTime: s.activeTime,
	}
}
