package game

import "sort"

// scheduledTask is a callback due at a given tick
type scheduledTask struct {
	due uint64
	seq uint64
	fn  func()
}

// TickScheduler runs deferred callbacks on the simulation goroutine.
// Nothing sleeps; due tasks run in order of due tick, then submission order.
//
// The scheduler keeps its own clock: each Advance closes one tick. Ticks
// that never call Advance, such as paused ones, do not count toward a delay.
type TickScheduler struct {
	tasks []scheduledTask
	seq   uint64
	now   uint64 // ticks closed so far
}

// NewTickScheduler creates an empty scheduler
func NewTickScheduler() *TickScheduler {
	return &TickScheduler{tasks: make([]scheduledTask, 0, 32)}
}

// After queues fn to run once delay more ticks have closed after the current
// one. A delay of zero runs when the current tick closes.
func (s *TickScheduler) After(delay int, fn func()) {
	if fn == nil {
		return
	}
	if delay < 0 {
		delay = 0
	}
	s.seq++
	s.tasks = append(s.tasks, scheduledTask{due: s.now + uint64(delay) + 1, seq: s.seq, fn: fn})
}

// Advance closes the current tick and runs every task that is due.
// Tasks queued by a running task wait for a later Advance.
func (s *TickScheduler) Advance() {
	s.now++
	tick := s.now
	if len(s.tasks) == 0 {
		return
	}

	due := make([]scheduledTask, 0, len(s.tasks))
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.due <= tick {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

// Now returns how many ticks have closed
func (s *TickScheduler) Now() uint64 { return s.now }

// Pending returns the number of queued tasks
func (s *TickScheduler) Pending() int { return len(s.tasks) }

// Clear drops every queued task
func (s *TickScheduler) Clear() {
	s.tasks = s.tasks[:0]
}
