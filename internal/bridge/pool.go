// internal/bridge/pool.go
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Pool executes blocking operations on a fixed set of workers so that
// callers on the request path can await results without occupying a worker
// themselves. Submissions queue in a bounded buffer; a full buffer is
// reported immediately rather than growing without bound.
type Pool struct {
	tasks chan *task
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// ErrQueueFull is returned when the submission buffer is at capacity.
var ErrQueueFull = errors.New("bridge: queue full")

// ErrClosed is returned for submissions after Close.
var ErrClosed = errors.New("bridge: pool closed")

// Op is a blocking operation. The context is the submitting caller's.
type Op func(ctx context.Context) (any, error)

type outcome struct {
	val any
	err error
}

type task struct {
	ctx  context.Context
	op   Op
	done chan outcome
}

// New creates a Pool with the given worker count and queue capacity and
// starts its workers.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Pool{tasks: make(chan *task, queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		// Skip work whose caller already gave up.
		if err := t.ctx.Err(); err != nil {
			t.done <- outcome{err: err}
			continue
		}
		t.done <- p.execute(t)
	}
}

// execute runs the op, converting a panic into an error so one bad
// operation cannot take a worker down.
func (p *Pool) execute(t *task) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bridge operation panicked", "panic", r)
			out = outcome{err: fmt.Errorf("bridge: operation panicked: %v", r)}
		}
	}()
	val, err := t.op(t.ctx)
	return outcome{val: val, err: err}
}

// Submit enqueues op and blocks until its outcome is delivered or ctx is
// cancelled. Each accepted op executes exactly once; its result goes to
// this caller only. A cancelled wait abandons the result (the done channel
// is buffered so the worker never blocks).
func (p *Pool) Submit(ctx context.Context, op Op) (any, error) {
	t := &task{ctx: ctx, op: op, done: make(chan outcome, 1)}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrClosed
	}
	select {
	case p.tasks <- t:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		return nil, ErrQueueFull
	}

	select {
	case out := <-t.done:
		return out.val, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting submissions and waits for queued work to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// Run submits a typed operation and awaits its result.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	val, err := p.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := val.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("bridge: unexpected result type %T", val)
	}
	return out, nil
}
