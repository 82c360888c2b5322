package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes tasks concurrently with at most limit tasks in flight
// (limit <= 0 means unbounded) and waits for all of them. Every failure is
// returned, joined, with the task name prefixed.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "aws_vpc.main", Func: refreshVPC},
//	    {Name: "aws_subnet.a", Func: refreshSubnet},
//	}
//	if err := RunParallel(ctx, tasks, 10); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))
	sem := make(chan struct{}, limit)

	for _, task := range tasks {
		go func() {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				resultChan <- result{name: task.Name, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()
			resultChan <- result{name: task.Name, err: task.Func(ctx)}
		}()
	}

	var errs []error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	return errors.Join(errs...)
}
