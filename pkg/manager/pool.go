package manager

import (
	"sync"

	"github.com/remeh/sizedwaitgroup"
	"github.com/rs/zerolog"

	"github.com/cuemby/herald/pkg/log"
	"github.com/cuemby/herald/pkg/metrics"
)

// Pool runs short background tasks with bounded concurrency. Submit never
// blocks the caller; tasks queue for a free slot.
type Pool struct {
	slots   sizedwaitgroup.SizedWaitGroup
	pending sync.WaitGroup
	logger  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool creates a pool running at most size tasks at once
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		slots:  sizedwaitgroup.New(size),
		logger: log.WithComponent("pool"),
	}
}

// Submit queues fn. It returns false once the pool is closed.
func (p *Pool) Submit(name string, fn func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn().Str("task", name).Msg("Pool closed, dropping task")
		return false
	}
	p.pending.Add(1)
	p.mu.Unlock()

	metrics.PoolTasksTotal.Inc()

	go func() {
		defer p.pending.Done()

		p.slots.Add()
		defer p.slots.Done()

		p.run(name, fn)
	}()
	return true
}

func (p *Pool) run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("task", name).Interface("panic", r).Msg("Task panicked")
		}
	}()
	fn()
}

// Close rejects new tasks and waits for queued and running ones
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
}
