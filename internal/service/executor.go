package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/timmy/scribe/internal/logger"
	"github.com/timmy/scribe/internal/metrics"
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("task queue is full")

	// ErrExecutorClosed is returned by Submit after Shutdown.
	ErrExecutorClosed = errors.New("executor is shut down")
)

// Task is one unit of background work.
type Task func(ctx context.Context)

type queuedTask struct {
	ctx  context.Context
	name string
	run  Task
}

// Executor runs background tasks on a fixed set of workers fed by a
// bounded queue. Submit never blocks the caller.
type Executor struct {
	tasks   chan queuedTask
	workers int
	metrics *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewExecutor creates an executor. Call Start before submitting.
func NewExecutor(workers, queueSize int, m *metrics.Metrics) *Executor {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Executor{
		tasks:   make(chan queuedTask, queueSize),
		workers: workers,
		metrics: m,
	}
}

// Start launches the workers. Calling it twice has no effect.
func (e *Executor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.closed {
		return
	}
	e.started = true
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go func(workerID int) {
			defer e.wg.Done()
			e.worker(workerID)
		}(i)
	}
}

// Submit queues task. The task receives a context detached from ctx's
// cancellation that keeps its logger fields.
func (e *Executor) Submit(ctx context.Context, name string, task Task) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}

	select {
	case e.tasks <- queuedTask{ctx: logger.Detach(ctx), name: name, run: task}:
		e.metrics.SetQueueDepth(len(e.tasks))
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued tasks not yet picked up.
func (e *Executor) Pending() int {
	return len(e.tasks)
}

// Shutdown stops accepting tasks and waits for queued and running tasks
// to finish, or for ctx to expire.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.tasks)
	}
	started := e.started
	e.mu.Unlock()

	if !started {
		// Drain inline so accepted tasks still run.
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.worker(0)
		}()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) worker(workerID int) {
	for t := range e.tasks {
		e.metrics.SetQueueDepth(len(e.tasks))
		e.run(workerID, t)
	}
}

func (e *Executor) run(workerID int, t queuedTask) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(t.ctx).WithField("worker", workerID).Errorf("Task %s panicked: %v", t.name, r)
		}
	}()
	t.run(t.ctx)
	logger.FromContext(t.ctx).WithFields(logger.Fields{
		"worker":               workerID,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debugf("Task %s finished", t.name)
}
