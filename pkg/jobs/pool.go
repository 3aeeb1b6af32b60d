package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one independent unit of work in a fan-out batch.
type Task struct {
	ID  string
	Run func(context.Context) error
}

// Result reports the outcome of a single task.
type Result struct {
	ID       string
	Err      error
	Attempts int
	Duration time.Duration
}

// PoolConfig configures worker pool behaviour.
type PoolConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Pool runs batches of tasks with bounded concurrency. A failing or panicking
// task never affects its siblings.
type Pool struct {
	name       string
	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("task panicked: %v", e.Value) }

// NewPool builds a pool; zero values fall back to one worker and no retries.
func NewPool(name string, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{
		name:       name,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int { return p.workers }

// Run executes every task and blocks until all have finished. Results are
// returned in task order. Cancelling ctx fails tasks that have not started.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = p.execute(ctx, tasks[i])
			}
		}()
	}

	for i := range tasks {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	p.logger.Sugar().Debugw("pool batch finished", "pool", p.name, "tasks", len(tasks), "workers", workers)
	return results
}

func (p *Pool) execute(ctx context.Context, task Task) Result {
	start := time.Now()
	res := Result{ID: task.ID}
	for {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		res.Attempts++
		err := p.safeRun(ctx, task)
		if err == nil {
			res.Err = nil
			break
		}
		res.Err = err
		if IsPermanent(err) || res.Attempts > p.maxRetries {
			break
		}
		p.logger.Sugar().Warnw("task failed, retrying", "pool", p.name, "task_id", task.ID, "attempt", res.Attempts, "error", err)

		timer := time.NewTimer(p.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			res.Duration = time.Since(start)
			return res
		case <-timer.C:
		}
	}
	if res.Err != nil {
		p.logger.Sugar().Errorw("task failed", "pool", p.name, "task_id", task.ID, "attempts", res.Attempts, "error", res.Err)
	}
	res.Duration = time.Since(start)
	return res
}

func (p *Pool) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(&PanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	return task.Run(ctx)
}
