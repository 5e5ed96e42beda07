package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/deepask/internal/completion"
)

// job is one subtask or step to solve with the user's sampling.
type job struct {
	index  int
	text   string
	prompt string
}

// outcome is the result of solving a job.
type outcome struct {
	job
	result string
	err    error
}

// solve answers every job in origin order. status builds the progress text
// shown before a job starts.
//
// With parallelism 1 the jobs run one at a time and solving stops at the
// first failure. Otherwise they fan out through an errgroup bounded by the
// engine's parallelism; the first failure cancels the rest.
//
// outs holds the outcomes collected so far, failed points at the failing
// outcome if any, and cont is false once the consumer stopped pulling.
func (e *Engine) solve(ctx context.Context, task Task, jobs []job, status func(job) string, yield func(Event) bool) (outs []outcome, failed *outcome, cont bool) {
	if e.parallelism <= 1 || len(jobs) < 2 {
		return e.solveSequential(ctx, task, jobs, status, yield)
	}
	return e.solveParallel(ctx, task, jobs, status, yield)
}

func (e *Engine) solveSequential(ctx context.Context, task Task, jobs []job, status func(job) string, yield func(Event) bool) ([]outcome, *outcome, bool) {
	outs := make([]outcome, 0, len(jobs))
	for _, j := range jobs {
		if !yield(Status(status(j))) {
			return outs, nil, false
		}
		result, err := e.client.Complete(ctx, e.solveRequest(task, j))
		outs = append(outs, outcome{job: j, result: result, err: err})
		if err != nil {
			e.log.Warn("solving failed", zap.Int("index", j.index), zap.Error(err))
			return outs, &outs[len(outs)-1], true
		}
	}
	return outs, nil, true
}

func (e *Engine) solveParallel(ctx context.Context, task Task, jobs []job, status func(job) string, yield func(Event) bool) ([]outcome, *outcome, bool) {
	for _, j := range jobs {
		if !yield(Status(status(j))) {
			return nil, nil, false
		}
	}

	outs := make([]outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	var (
		mu    sync.Mutex
		first = -1
	)
	for i, j := range jobs {
		g.Go(func() error {
			result, err := e.completeRecovered(gctx, e.solveRequest(task, j))
			outs[i] = outcome{job: j, result: result, err: err}
			if err != nil {
				mu.Lock()
				if first < 0 {
					first = i
				}
				mu.Unlock()
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.log.Warn("solving failed", zap.Int("index", outs[first].index), zap.Error(err))
		return outs, &outs[first], true
	}
	return outs, nil, true
}

// completeRecovered calls Complete and turns a panic into an error. A panic
// in a worker goroutine would otherwise take the process down.
func (e *Engine) completeRecovered(ctx context.Context, req completion.Request) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completion panicked: %v", r)
		}
	}()
	return e.client.Complete(ctx, req)
}

func (e *Engine) solveRequest(task Task, j job) completion.Request {
	return completion.Request{
		Prompt:   j.prompt,
		History:  task.History,
		Sampling: task.Sampling,
	}
}
