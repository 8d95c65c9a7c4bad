package linters

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelExecutor runs independent lint requests concurrently. Each request
// is still a single synchronous pipeline; only separate requests overlap.
type ParallelExecutor struct {
	maxWorkers int
}

// NewParallelExecutor creates a new parallel executor with the specified number of workers
// If maxWorkers is 0 or negative, it defaults to runtime.NumCPU()
func NewParallelExecutor(maxWorkers int) *ParallelExecutor {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	return &ParallelExecutor{
		maxWorkers: maxWorkers,
	}
}

// LintTask represents a single linting task
type LintTask struct {
	Linter  Linter
	Request *Request
}

// LintTaskResult represents the result of a linting task
type LintTaskResult struct {
	LinterName string
	Path       string
	Result     *LintResult
	Error      error
}

// ExecuteTasks runs the tasks and returns results in task order.
func (pe *ParallelExecutor) ExecuteTasks(ctx context.Context, tasks []LintTask) []LintTaskResult {
	if len(tasks) == 0 {
		return nil
	}

	results := make([]LintTaskResult, len(tasks))

	// For single task, run directly without goroutines
	if len(tasks) == 1 {
		results[0] = runTask(ctx, tasks[0])
		return results
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pe.maxWorkers)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = LintTaskResult{
					LinterName: task.Linter.Name(),
					Path:       task.Request.Path,
					Error:      err,
				}
				return nil
			}
			results[i] = runTask(ctx, task)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runTask(ctx context.Context, task LintTask) LintTaskResult {
	result, err := task.Linter.Lint(ctx, task.Request)
	return LintTaskResult{
		LinterName: task.Linter.Name(),
		Path:       task.Request.Path,
		Result:     result,
		Error:      err,
	}
}
