package session

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs recurring tasks with a fixed delay between the end of one
// run and the start of the next. Each task has its own goroutine, so a slow
// run only delays that task.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewScheduler creates a running scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
	}
}

// ScheduleWithFixedDelay runs fn after initial, then again delay after each
// run returns, until Stop. fn receives a context cancelled by Stop.
// Returns false if the scheduler is already stopped.
func (s *Scheduler) ScheduleWithFixedDelay(initial, delay time.Duration, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return false
	}

	s.wg.Add(1)
	go s.loop(initial, delay, fn)
	return true
}

func (s *Scheduler) loop(initial, delay time.Duration, fn func(ctx context.Context)) {
	defer s.wg.Done()

	timer := time.NewTimer(initial)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			return
		}

		// Stop may have raced the timer
		if s.ctx.Err() != nil {
			return
		}
		fn(s.ctx)

		timer.Reset(delay)
	}
}

// Stop cancels every task and waits for in-flight runs to return.
// It must not be called from inside a scheduled task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Stopped reports whether Stop has been called
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
