// Package worker provides a bounded goroutine pool used by the UDP
// transport to drain its receive queue without spawning one goroutine
// per datagram.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = errors.New("worker pool closed")

	// ErrQueueFull indicates the job queue is full.
	ErrQueueFull = errors.New("job queue is full")
)

// Job is a unit of work executed by the pool.
type Job interface {
	Execute(ctx context.Context) error
}

// JobFunc adapts a plain function to Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) Execute(ctx context.Context) error { return f(ctx) }

// Config holds worker pool configuration.
type Config struct {
	// Workers is the number of goroutines draining the queue. 0 means
	// runtime.NumCPU() * 4.
	Workers int

	// QueueSize bounds how many jobs may be pending at once. 0 means
	// Workers * 100.
	QueueSize int

	// PanicHandler, if set, is called with the recovered value when a
	// job panics. The pool itself never crashes on a job panic.
	PanicHandler func(interface{})
}

// Pool is a bounded worker pool.
type Pool struct {
	workers int
	queue   chan *jobWrapper
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool

	panicHandler func(interface{})
}

type jobWrapper struct {
	job      Job
	ctx      context.Context
	resultCh chan error
}

// NewPool starts cfg.Workers goroutines and returns the running Pool.
func NewPool(cfg Config) *Pool {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU() * 4
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = cfg.Workers * 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers:      cfg.Workers,
		queue:        make(chan *jobWrapper, cfg.QueueSize),
		ctx:          ctx,
		cancel:       cancel,
		panicHandler: cfg.PanicHandler,
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case wrapper, ok := <-p.queue:
			if !ok {
				return
			}
			p.executeJob(wrapper)
		}
	}
}

func (p *Pool) executeJob(wrapper *jobWrapper) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			}
			select {
			case wrapper.resultCh <- errors.New("job panicked"):
			default:
			}
		}
	}()

	err := wrapper.job.Execute(wrapper.ctx)
	select {
	case wrapper.resultCh <- err:
	default:
	}
}

// Submit queues job and blocks until it completes or ctx is done.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	wrapper := &jobWrapper{job: job, ctx: ctx, resultCh: make(chan error, 1)}

	select {
	case p.queue <- wrapper:
		select {
		case err := <-wrapper.resultCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// SubmitAsync queues job without waiting for it to run. It returns
// ErrQueueFull immediately if the queue has no room.
func (p *Pool) SubmitAsync(job Job) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	wrapper := &jobWrapper{job: job, ctx: p.ctx, resultCh: make(chan error, 1)}
	select {
	case p.queue <- wrapper:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting new jobs and waits for in-flight jobs to finish.
func (p *Pool) Close() error {
	if p.closed.Swap(true) {
		return ErrPoolClosed
	}
	close(p.queue)
	p.wg.Wait()
	p.cancel()
	return nil
}
