// Package queue runs git and logging operations on a single background
// worker, off the request path.
//
// A single worker is deliberate: operations on one participant's
// repository must serialize anyway through the repository lock, and the
// study's concurrency (tens of participants, infrequent transitions) does
// not justify a pool.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/OhItsLena/coding-study-test-sub000/pkg/model"
)

// Processor executes one operation. Implementations dispatch on the
// operation kind.
type Processor interface {
	Process(ctx context.Context, op model.Operation) error
}

// ProcessorFunc adapts a function to the Processor interface
type ProcessorFunc func(ctx context.Context, op model.Operation) error

// Process implements Processor
func (f ProcessorFunc) Process(ctx context.Context, op model.Operation) error {
	return f(ctx, op)
}

// Stats is a snapshot of queue counters. All counters are cumulative
// except Depth.
type Stats struct {
	Total             int64 `json:"total_operations"`
	Succeeded         int64 `json:"successful_operations"`
	Failed            int64 `json:"failed_operations"`
	Depth             int   `json:"queue_size"`
	PermanentlyFailed int   `json:"permanently_failed"`
	WorkerAlive       bool  `json:"worker_alive"`
}

const defaultFailedHistory = 100

// Queue is an unbounded FIFO with one consumer goroutine.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ops     []model.Operation
	busy    bool
	stopped bool
	done    chan struct{}
	alive   bool

	failedOps  []model.Operation
	maxFailed  int
	maxRetries int

	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	proc Processor
	l    *zap.Logger
}

// Option customizes a Queue
type Option func(*Queue)

// WithLogger sets the queue logger
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) {
		q.l = l
	}
}

// WithMaxRetries overrides the per-operation retry budget
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		q.maxRetries = n
	}
}

// WithFailedHistory bounds the permanently-failed record
func WithFailedHistory(n int) Option {
	return func(q *Queue) {
		q.maxFailed = n
	}
}

// New builds a queue and starts its worker.
func New(proc Processor, opts ...Option) *Queue {
	q := &Queue{
		proc:       proc,
		l:          zap.NewNop(),
		maxRetries: model.MaxOperationRetries,
		maxFailed:  defaultFailedHistory,
	}
	q.cond = sync.NewCond(&q.mu)
	for _, apply := range opts {
		apply(q)
	}
	q.Start()
	return q
}

// Enqueue appends an operation to the tail. It never blocks; in async
// mode callers cannot observe the eventual outcome.
func (q *Queue) Enqueue(op model.Operation) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
	q.cond.Broadcast()
	q.l.Debug("queued operation",
		zap.String("kind", string(op.Kind)),
		zap.String("participant", op.ParticipantID))
}

// Start launches the worker goroutine. Safe to call when a previous
// worker already exited; a no-op when one is still running.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.alive {
		return
	}
	q.stopped = false
	q.alive = true
	q.done = make(chan struct{})
	go q.loop(q.done)
	q.l.Debug("queue worker started")
}

// Stop signals the worker to exit after its current operation and waits
// for it, bounded by timeout. Queued operations stay queued.
func (q *Queue) Stop(timeout time.Duration) {
	q.mu.Lock()
	if !q.alive {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	done := q.done
	q.mu.Unlock()
	q.cond.Broadcast()

	select {
	case <-done:
	case <-time.After(timeout):
		q.l.Warn("queue worker did not stop in time", zap.Duration("timeout", timeout))
	}
}

// Wait blocks until the queue is drained and the worker is idle, or the
// timeout elapses. Used by graceful shutdown and tests only.
func (q *Queue) Wait(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		idle := len(q.ops) == 0 && !q.busy
		q.mu.Unlock()
		if idle {
			return nil
		}
		if timeout > 0 && time.Now().After(deadline) {
			return context.DeadlineExceeded
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	depth := len(q.ops)
	permanent := len(q.failedOps)
	alive := q.alive
	q.mu.Unlock()
	return Stats{
		Total:             q.total.Load(),
		Succeeded:         q.succeeded.Load(),
		Failed:            q.failed.Load(),
		Depth:             depth,
		PermanentlyFailed: permanent,
		WorkerAlive:       alive,
	}
}

// FailedOperations returns the operations that exhausted their retries.
func (q *Queue) FailedOperations() []model.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Operation, len(q.failedOps))
	copy(out, q.failedOps)
	return out
}

func (q *Queue) loop(done chan struct{}) {
	defer close(done)
	defer func() {
		q.mu.Lock()
		q.alive = false
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		for len(q.ops) == 0 && !q.stopped {
			q.cond.Wait()
		}
		if q.stopped {
			q.mu.Unlock()
			return
		}
		op := q.ops[0]
		q.ops = q.ops[1:]
		q.busy = true
		q.mu.Unlock()

		q.process(op)

		q.mu.Lock()
		q.busy = false
		q.mu.Unlock()
	}
}

func (q *Queue) process(op model.Operation) {
	q.total.Inc()

	err := q.safeProcess(op)
	if err == nil {
		q.succeeded.Inc()
		return
	}

	if op.Retries < q.maxRetries {
		op.Retries++
		q.l.Warn("operation failed, requeueing",
			zap.String("kind", string(op.Kind)),
			zap.String("participant", op.ParticipantID),
			zap.Int("attempt", op.Retries),
			zap.Error(err))
		// Requeue at the tail: a repeatedly failing operation must not
		// starve other participants' work.
		q.mu.Lock()
		q.ops = append(q.ops, op)
		q.mu.Unlock()
		return
	}

	q.failed.Inc()
	q.l.Error("operation failed permanently",
		zap.String("kind", string(op.Kind)),
		zap.String("participant", op.ParticipantID),
		zap.Error(err))
	q.mu.Lock()
	q.failedOps = append(q.failedOps, op)
	if len(q.failedOps) > q.maxFailed {
		q.failedOps = q.failedOps[len(q.failedOps)-q.maxFailed:]
	}
	q.mu.Unlock()
}

// safeProcess isolates panics so one bad operation cannot take down the
// worker loop.
func (q *Queue) safeProcess(op model.Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.l.Error("operation panicked", zap.String("kind", string(op.Kind)), zap.Any("panic", r))
			err = fmt.Errorf("operation panic: %v", r)
		}
	}()
	return q.proc.Process(context.Background(), op)
}
