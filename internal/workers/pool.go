// Package workers provides a bounded worker pool with a caller-runs overflow
// policy.
//
// A Pool owns a fixed number of goroutines fed by a buffered queue. Submit
// never drops a task and never blocks indefinitely: when the queue is full the
// task runs synchronously on the submitting goroutine. Every overflow is logged
// with the current queue depth and active worker count.
//
// Notification delivery and other background work run on separate pools.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-vote-backend/internal/observability"
)

// Task is a unit of work. The returned error is delivered on the channel
// returned by Submit.
type Task func(ctx context.Context) error

// ErrClosed is delivered for tasks submitted after Close.
var ErrClosed = errors.New("workers: pool closed")

type job struct {
	task Task
	done chan error
}

// Pool is a fixed-size worker pool. The zero value is not usable; use New.
type Pool struct {
	name   string
	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// New starts a pool named name with workers goroutines and a queue holding up
// to queueSize pending tasks. A queueSize of 0 makes every submission that
// finds no idle worker run inline.
func New(name string, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		name:   name,
		queue:  make(chan job, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: log.With().Str("component", "workers").Str("pool", name).Logger(),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

// Name returns the pool's name.
func (p *Pool) Name() string { return p.name }

// Active returns the number of tasks currently executing on pool workers.
func (p *Pool) Active() int { return int(p.active.Load()) }

// QueueDepth returns the number of tasks waiting for a worker.
func (p *Pool) QueueDepth() int { return len(p.queue) }

// Submit schedules t and returns a channel that receives exactly one value:
// the task's error (nil on success). The channel is buffered, so callers that
// don't care about the outcome may ignore it.
//
// When the queue is full, t runs on the calling goroutine before Submit
// returns.
func (p *Pool) Submit(t Task) <-chan error {
	done := make(chan error, 1)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		done <- ErrClosed
		return done
	}
	select {
	case p.queue <- job{task: t, done: done}:
		p.mu.RUnlock()
		observability.PoolQueueDepth.WithLabelValues(p.name).Set(float64(len(p.queue)))
		return done
	default:
	}
	p.mu.RUnlock()

	observability.PoolOverflow.WithLabelValues(p.name).Inc()
	p.logger.Warn().
		Int("queue_depth", len(p.queue)).
		Int("queue_capacity", cap(p.queue)).
		Int64("active_workers", p.active.Load()).
		Msg("queue full, running task on caller")

	done <- p.run(p.ctx, t)
	return done
}

// Close stops accepting tasks, drains the queue and waits for workers to
// finish or ctx to expire.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for j := range p.queue {
		observability.PoolQueueDepth.WithLabelValues(p.name).Set(float64(len(p.queue)))
		p.active.Add(1)
		err := p.run(p.ctx, j.task)
		p.active.Add(-1)
		j.done <- err
	}
}

// run executes t, converting a panic into an error so one bad task cannot
// take down a worker.
func (p *Pool) run(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workers: task panic: %v", r)
			p.logger.Error().Interface("panic", r).Msg("task panicked")
		}
	}()
	return t(ctx)
}
