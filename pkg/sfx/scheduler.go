package sfx

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"
)

// defaultQueueCap is the initial capacity hint for the deadline queue.
const defaultQueueCap = 16

// SchedulerOption configures a [Scheduler] during construction.
type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock used to compute and check deadlines.
// Intended for tests that advance time manually and drain with
// [Scheduler.RunDue].
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler runs deferred actions once their deadline has passed. Pending
// actions are kept in a min-heap keyed by deadline; scheduling never blocks
// and an action cannot be revoked once scheduled, except by [Scheduler.Clear]
// at shutdown.
//
// Due actions are executed either by [Scheduler.Run] on its own goroutine or
// by an application main loop calling [Scheduler.RunDue]. Actions always run
// without the scheduler lock held, so they may schedule further actions.
//
// All exported methods are safe for concurrent use.
type Scheduler struct {
	now func() time.Time

	mu    sync.Mutex
	queue timerHeap
	seq   uint64

	notify chan struct{} // signalled when the earliest deadline may have changed
}

// NewScheduler creates an empty [Scheduler].
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		now:    time.Now,
		queue:  make(timerHeap, 0, defaultQueueCap),
		notify: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	heap.Init(&s.queue)
	return s
}

// After schedules fn to run once d has elapsed. A non-positive d makes the
// action due immediately.
func (s *Scheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, timer{
		deadline: s.now().Add(max(d, 0)),
		seq:      s.seq,
		action:   fn,
	})
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// RunDue executes every action whose deadline is at or before the current
// time, in deadline order, and returns how many ran.
func (s *Scheduler) RunDue() int {
	s.mu.Lock()
	now := s.now()
	var due []func()
	for s.queue.Len() > 0 && !s.queue[0].deadline.After(now) {
		t := heap.Pop(&s.queue).(timer)
		due = append(due, t.action)
	}
	s.mu.Unlock()

	for _, fn := range due {
		runAction(fn)
	}
	return len(due)
}

// Pending returns the number of scheduled actions that have not run yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// NextDeadline returns the earliest pending deadline, or ok=false when the
// queue is empty.
func (s *Scheduler) NextDeadline() (deadline time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 {
		return time.Time{}, false
	}
	return s.queue[0].deadline, true
}

// Clear drops all pending actions without running them and returns how many
// were dropped.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.queue.Len()
	s.queue = make(timerHeap, 0, defaultQueueCap)
	return n
}

// Run executes due actions until ctx is cancelled, sleeping until the next
// deadline in between. It returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	// Reusable timer; a stopped timer with no pending fire is the idle state.
	wake := time.NewTimer(time.Hour)
	wake.Stop()
	defer wake.Stop()

	for {
		s.RunDue()

		var wakeC <-chan time.Time
		if next, ok := s.NextDeadline(); ok {
			wake.Reset(max(next.Sub(s.now()), 0))
			wakeC = wake.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.notify:
			wake.Stop()
		case <-wakeC:
		}
	}
}

// runAction executes fn and converts a panic into a log entry so that one
// faulty release cannot take the process down.
func runAction(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sfx: scheduled action panicked", "panic", r)
		}
	}()
	fn()
}
