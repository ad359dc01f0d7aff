package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type task struct {
	name string
	fn   func(context.Context)
}

// TaskRunner executes fire-and-forget work (notifications, account cleanup)
// on a small fixed pool, decoupled from the trading path. Submit never
// blocks; when the queue is full the task is dropped and logged, which is
// acceptable for best-effort side work.
type TaskRunner struct {
	jobs    chan task
	timeout time.Duration
	wg      sync.WaitGroup
	logger  *zap.Logger
}

func NewTaskRunner(workers, queueSize int, logger *zap.Logger) *TaskRunner {
	r := &TaskRunner{
		jobs:    make(chan task, queueSize),
		timeout: 30 * time.Second,
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *TaskRunner) worker() {
	defer r.wg.Done()
	for t := range r.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		t.fn(ctx)
		cancel()
	}
}

// Submit schedules fn for execution. Returns false if the queue was full.
func (r *TaskRunner) Submit(name string, fn func(context.Context)) bool {
	select {
	case r.jobs <- task{name: name, fn: fn}:
		return true
	default:
		r.logger.Warn("task queue full, dropping task", zap.String("task", name))
		return false
	}
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (r *TaskRunner) Close() {
	close(r.jobs)
	r.wg.Wait()
}
