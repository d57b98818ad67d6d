package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/agendabot/internal/types"
)

// Gateway orchestrates inbound messages into runs. It resolves (or creates)
// sessions, wraps each message in a Run, and enqueues the run for
// processing. Callers are expected to have verified the message credential
// before it gets here; the gateway only carries it through to the runtime.
type Gateway struct {
	sessions types.SessionStore
	Queue    *Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options tunes gateway concurrency and per-turn deadlines.
type Options struct {
	MaxConcurrent int64
	TurnTimeout   time.Duration
}

// New creates a Gateway wired to the session store.
func New(sessions types.SessionStore, opts Options) *Gateway {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	return &Gateway{
		sessions: sessions,
		Queue:    NewQueue(opts.MaxConcurrent, opts.TurnTimeout),
	}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnComplete sets a callback invoked when the run produces a final response.
func WithOnComplete(fn func(string)) RunOption {
	return func(r *Run) { r.OnComplete = fn }
}

// WithOnError sets a callback invoked when the run fails.
func WithOnError(fn func(error)) RunOption {
	return func(r *Run) { r.OnError = fn }
}

// HandleInbound resolves or creates a session for the message, wraps it in a
// Run, and enqueues it for processing.
func (g *Gateway) HandleInbound(ctx context.Context, msg *types.InboundMessage, opts ...RunOption) error {
	sessionID, err := g.sessions.ResolveOrCreate(ctx, msg.SessionKey)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	run := NewRun(sessionID, msg)
	for _, opt := range opts {
		opt(run)
	}
	return g.Queue.Enqueue(run)
}
