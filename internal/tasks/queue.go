// Package tasks runs named background jobs on a bounded in-process queue.
// Dispatch is fire-and-forget: failures are logged and handed to the failure
// hook, never retried and never reported to the caller.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	NotifySubscribers = "notify_subscribers"

	defaultWorkers   = 4
	defaultQueueSize = 1000
	defaultTimeout   = 5 * time.Minute

	failureHookTimeout = 30 * time.Second
)

type Handler func(ctx context.Context, arg int64) error

type Task struct {
	ID         string
	Name       string
	Arg        int64
	EnqueuedAt time.Time
}

type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	// OnFailure is called from the worker goroutine after a handler fails.
	OnFailure func(ctx context.Context, task Task, err error)
}

type Queue struct {
	handlers  map[string]Handler
	queue     chan Task
	workers   int
	timeout   time.Duration
	onFailure func(ctx context.Context, task Task, err error)

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
	log     *slog.Logger
}

func New(opts Options, log *slog.Logger) *Queue {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Queue{
		handlers:  make(map[string]Handler),
		queue:     make(chan Task, queueSize),
		workers:   workers,
		timeout:   timeout,
		onFailure: opts.OnFailure,
		log:       log,
	}
}

// Register binds a handler to a task name. It must be called before Start.
func (q *Queue) Register(name string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[name] = h
}

func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return errors.New("queue is already started")
	}
	if q.closed {
		return errors.New("queue is stopped")
	}
	q.started = true

	for range q.workers {
		q.wg.Add(1)
		go q.work(ctx)
	}

	return nil
}

// Stop rejects new tasks and waits until queued tasks are processed.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.queue)
	q.mu.Unlock()

	q.wg.Wait()
}

// Dispatch enqueues a task without blocking. It returns the task ID and false
// when the task was dropped because the queue is full, stopped or the name is
// unknown.
func (q *Queue) Dispatch(ctx context.Context, name string, arg int64) (string, bool) {
	task := Task{
		ID:         uuid.NewString(),
		Name:       name,
		Arg:        arg,
		EnqueuedAt: time.Now(),
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if _, ok := q.handlers[name]; !ok {
		q.log.ErrorContext(ctx, "Unknown task is dropped",
			"taskID", task.ID,
			"task", name,
			"arg", arg)

		return task.ID, false
	}

	if q.closed {
		q.log.WarnContext(ctx, "Queue is stopped so task is dropped",
			"taskID", task.ID,
			"task", name,
			"arg", arg)

		return task.ID, false
	}

	select {
	case q.queue <- task:
		q.log.DebugContext(ctx, "Task is dispatched",
			"taskID", task.ID,
			"task", name,
			"arg", arg,
			"queueLen", len(q.queue))

		return task.ID, true
	default:
		q.log.WarnContext(ctx, "Queue is full so task is dropped",
			"taskID", task.ID,
			"task", name,
			"arg", arg,
			"queueCap", cap(q.queue))

		return task.ID, false
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()

	for task := range q.queue {
		q.run(ctx, task)
	}
}

func (q *Queue) run(ctx context.Context, task Task) {
	q.mu.RLock()
	h := q.handlers[task.Name]
	q.mu.RUnlock()

	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
	defer cancel()

	start := time.Now()
	err := q.safeRun(taskCtx, h, task)

	if err != nil {
		q.log.ErrorContext(taskCtx, "Task failed",
			"error", err,
			"taskID", task.ID,
			"task", task.Name,
			"arg", task.Arg,
			"durationMs", time.Since(start).Milliseconds())

		if q.onFailure != nil {
			// The task context may have expired, which is often why it failed.
			hookCtx, hookCancel := context.WithTimeout(context.WithoutCancel(taskCtx), failureHookTimeout)
			q.onFailure(hookCtx, task, err)
			hookCancel()
		}

		return
	}

	q.log.InfoContext(taskCtx, "Task succeeded",
		"taskID", task.ID,
		"task", task.Name,
		"arg", task.Arg,
		"waitMs", start.Sub(task.EnqueuedAt).Milliseconds(),
		"durationMs", time.Since(start).Milliseconds())
}

func (q *Queue) safeRun(ctx context.Context, h Handler, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	return h(ctx, task.Arg)
}
