package async

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunParallel_Success(t *testing.T) {
	var count atomic.Int32

	tasks := make([]Task, 3)
	for i := range tasks {
		tasks[i] = Task{Name: "task", Func: func(_ context.Context) error {
			count.Add(1)
			return nil
		}}
	}

	if err := RunParallel(context.Background(), tasks, 0); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
	if count.Load() != 3 {
		t.Errorf("expected 3 tasks to run, got %d", count.Load())
	}
}

func TestRunParallel_EmptyTasks(t *testing.T) {
	if err := RunParallel(context.Background(), nil, 4); err != nil {
		t.Errorf("expected no error for empty tasks, got: %v", err)
	}
}

func TestRunParallel_MultipleErrors(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	tasks := []Task{
		{Name: "fail1", Func: func(_ context.Context) error { return err1 }},
		{Name: "ok", Func: func(_ context.Context) error { return nil }},
		{Name: "fail2", Func: func(_ context.Context) error { return err2 }},
	}

	err := RunParallel(context.Background(), tasks, 2)
	if !errors.Is(err, err1) || !errors.Is(err, err2) {
		t.Errorf("expected both errors to be joined, got: %v", err)
	}
	if !strings.Contains(err.Error(), "fail1") || !strings.Contains(err.Error(), "fail2") {
		t.Errorf("error message should contain task names, got: %s", err)
	}
}

func TestRunParallel_RespectsLimit(t *testing.T) {
	var maxConcurrent atomic.Int32
	var current atomic.Int32

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{
			Name: "task",
			Func: func(_ context.Context) error {
				c := current.Add(1)
				for {
					old := maxConcurrent.Load()
					if c <= old || maxConcurrent.CompareAndSwap(old, c) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return nil
			},
		}
	}

	if err := RunParallel(context.Background(), tasks, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := maxConcurrent.Load(); got > 3 {
		t.Errorf("expected at most 3 concurrent tasks, got %d", got)
	}
}

func TestRunParallel_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []Task{
		{Name: "task", Func: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
				return nil
			}
		}},
	}

	err := RunParallel(ctx, tasks, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled error, got: %v", err)
	}
}
