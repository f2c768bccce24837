package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestSchedulerImmediateFirstRun tests that a zero initial delay runs right away
func TestSchedulerImmediateFirstRun(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	ran := make(chan struct{}, 1)
	s.ScheduleWithFixedDelay(0, time.Hour, func(ctx context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run immediately")
	}
}

func TestSchedulerRepeats(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	s.ScheduleWithFixedDelay(0, 10*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	assert.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerInitialDelay(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	s.ScheduleWithFixedDelay(time.Hour, time.Hour, func(ctx context.Context) {
		runs.Add(1)
	})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())
}

// TestSchedulerStopWaitsForInFlight tests that Stop returns only after a
// running task has observed cancellation and returned
func TestSchedulerStopWaitsForInFlight(t *testing.T) {
	s := NewScheduler()

	started := make(chan struct{})
	var finished atomic.Bool
	s.ScheduleWithFixedDelay(0, time.Hour, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	s.Stop()

	assert.True(t, finished.Load())
	assert.True(t, s.Stopped())
}

func TestSchedulerNoRunsAfterStop(t *testing.T) {
	s := NewScheduler()

	var runs atomic.Int32
	s.ScheduleWithFixedDelay(0, time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, time.Second, time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestSchedulerRejectsAfterStop(t *testing.T) {
	s := NewScheduler()
	s.Stop()

	ok := s.ScheduleWithFixedDelay(0, time.Millisecond, func(ctx context.Context) {
		t.Error("task should never run")
	})

	assert.False(t, ok)
	time.Sleep(10 * time.Millisecond)
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	assert.NotPanics(t, s.Stop)
}
