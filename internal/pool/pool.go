// Package pool runs a fixed set of long-lived workers over the to-do list,
// streaming results back in completion order.
//
// Workers share one immutable metadata index through their task specs, so
// there is no shared mutable state to guard. Nothing a single task does can
// abort the pool: panics escaping the task function are caught at the
// dispatch boundary and converted into failed results.
package pool

import (
	"context"
	"log/slog"
	"sync"

	"wavebatch/internal/logging"
	"wavebatch/internal/task"
)

// Func executes one task and returns its tagged result.
type Func func(ctx context.Context, spec task.Spec) task.Result

// Pool dispatches task specs across a fixed number of workers.
type Pool struct {
	workers int
	run     Func
	logger  *slog.Logger
}

// New constructs a pool. Worker counts below one are clamped to one.
func New(workers int, run Func, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{workers: workers, run: run, logger: logger}
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.workers }

// Dispatch feeds the specs to the workers and returns a channel of results
// in completion order (not submission order). The channel closes once every
// dispatched task has resolved. Cancelling the context stops feeding new
// tasks; in-flight tasks still deliver their results.
func (p *Pool) Dispatch(ctx context.Context, specs []task.Spec) <-chan task.Result {
	tasks := make(chan task.Spec)
	results := make(chan task.Result, p.workers)

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		worker := i
		go func() {
			defer wg.Done()
			p.runWorker(ctx, worker, tasks, results)
		}()
	}

	go func() {
		defer close(tasks)
		for _, spec := range specs {
			select {
			case tasks <- spec:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pool) runWorker(ctx context.Context, worker int, tasks <-chan task.Spec, results chan<- task.Result) {
	for spec := range tasks {
		result := p.dispatchOne(ctx, spec)
		if result.Failed() {
			p.logger.Debug("task failed",
				logging.Int("worker", worker),
				logging.String(logging.FieldTaskID, result.TaskID),
				logging.String("error", result.Error))
		}
		results <- result
	}
}

// dispatchOne is the dispatch boundary: a panic escaping the task function
// becomes a worker_crash result instead of taking down the pool.
func (p *Pool) dispatchOne(ctx context.Context, spec task.Spec) (result task.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = task.WorkerCrash(spec.TaskID, r)
		}
	}()
	return p.run(ctx, spec)
}
