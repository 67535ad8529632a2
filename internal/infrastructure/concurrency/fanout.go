package concurrency

import (
	"context"
	"sync"
)

// Task is one independent unit of work in a fan-out. Its error never cancels
// the other tasks.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// FanOut runs tasks with at most limit in flight and returns a collector holding
// every task error keyed by task id. A canceled context stops tasks that have
// not started yet; they are recorded with the context error.
func FanOut(ctx context.Context, limit int, tasks []Task) *ErrorCollector {
	collector := NewErrorCollector(len(tasks) + 1)
	if len(tasks) == 0 {
		return collector
	}
	if limit <= 0 || limit > len(tasks) {
		limit = len(tasks)
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for _, task := range tasks {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			collector.Add(task.ID, ctx.Err())
			continue
		}

		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			defer func() { <-sem }()
			collector.Add(t.ID, t.Run(ctx))
		}(task)
	}

	wg.Wait()
	return collector
}
