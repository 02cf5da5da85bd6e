package tasks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

const testTask = "test_task"

func TestQueueRunsDispatchedTasks(t *testing.T) {
	q := New(Options{Workers: 2, QueueSize: 10}, slog.Default())

	var (
		mu   sync.Mutex
		args []int64
	)
	q.Register(NotifySubscribers, func(_ context.Context, arg int64) error {
		mu.Lock()
		defer mu.Unlock()
		args = append(args, arg)
		return nil
	})

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, postID := range []int64{1, 2, 3} {
		id, ok := q.Dispatch(context.Background(), NotifySubscribers, postID)
		if !ok || id == "" {
			t.Fatalf("expected task %d to be enqueued", postID)
		}
	}

	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(args) != 3 {
		t.Fatalf("expected 3 tasks to run before stop returns, got %d", len(args))
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := New(Options{Workers: 1, QueueSize: 1}, slog.Default())
	q.Register(testTask, func(context.Context, int64) error { return nil })

	if _, ok := q.Dispatch(context.Background(), testTask, 0); !ok {
		t.Fatalf("expected first task to be enqueued")
	}

	if _, ok := q.Dispatch(context.Background(), testTask, 0); ok {
		t.Fatalf("expected second task to be dropped")
	}
}

func TestQueueDropsUnknownTask(t *testing.T) {
	q := New(Options{}, slog.Default())

	if _, ok := q.Dispatch(context.Background(), "unknown", 1); ok {
		t.Fatalf("expected unknown task to be dropped")
	}
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := New(Options{}, slog.Default())
	q.Register(testTask, func(context.Context, int64) error { return nil })

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	q.Stop()
	q.Stop()

	if _, ok := q.Dispatch(context.Background(), testTask, 0); ok {
		t.Fatalf("expected dispatch after stop to be rejected")
	}
}

func TestQueueReportsFailures(t *testing.T) {
	wantErr := errors.New("smtp down")

	var (
		mu       sync.Mutex
		failures []error
	)

	q := New(Options{
		Workers: 1,
		Timeout: time.Second,
		OnFailure: func(_ context.Context, task Task, err error) {
			mu.Lock()
			defer mu.Unlock()

			if task.Name != NotifySubscribers || task.Arg != 9 {
				t.Errorf("unexpected task: %+v", task)
			}
			failures = append(failures, err)
		},
	}, slog.Default())

	q.Register(NotifySubscribers, func(_ context.Context, arg int64) error {
		if arg == 9 {
			return wantErr
		}
		panic("unexpected argument")
	})

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	q.Dispatch(context.Background(), NotifySubscribers, 9)
	q.Stop()

	mu.Lock()
	defer mu.Unlock()

	if len(failures) != 1 || !errors.Is(failures[0], wantErr) {
		t.Fatalf("expected one reported failure, got %v", failures)
	}
}

func TestQueueRecoversPanics(t *testing.T) {
	var (
		mu  sync.Mutex
		got error
	)

	q := New(Options{
		Workers: 1,
		OnFailure: func(_ context.Context, _ Task, err error) {
			mu.Lock()
			defer mu.Unlock()
			got = err
		},
	}, slog.Default())
	q.Register(testTask, func(context.Context, int64) error { panic("boom") })

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	q.Dispatch(context.Background(), testTask, 0)
	q.Stop()

	mu.Lock()
	defer mu.Unlock()

	if got == nil || !strings.Contains(got.Error(), "panic: boom") {
		t.Fatalf("expected recovered panic, got %v", got)
	}
}

func TestQueueFailureHookOutlivesTaskTimeout(t *testing.T) {
	var (
		mu      sync.Mutex
		taskErr error
		hookErr error
		called  bool
	)

	q := New(Options{
		Workers: 1,
		Timeout: 20 * time.Millisecond,
		OnFailure: func(ctx context.Context, _ Task, err error) {
			mu.Lock()
			defer mu.Unlock()

			called = true
			taskErr = err
			hookErr = ctx.Err()
		},
	}, slog.Default())
	q.Register(testTask, func(ctx context.Context, _ int64) error {
		<-ctx.Done()
		return ctx.Err()
	})

	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	q.Dispatch(context.Background(), testTask, 0)
	q.Stop()

	mu.Lock()
	defer mu.Unlock()

	if !called || !errors.Is(taskErr, context.DeadlineExceeded) {
		t.Fatalf("expected timed out task to be reported, got called = %v err = %v", called, taskErr)
	}
	if hookErr != nil {
		t.Fatalf("failure hook got a done context: %v", hookErr)
	}
}
