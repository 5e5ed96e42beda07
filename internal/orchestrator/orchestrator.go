// Package orchestrator turns one user task into a tree of sub-prompts,
// solves them through a completion.Completer and folds the results back into
// a single answer. Every orchestrator is exposed as a lazy, finite sequence
// of Status and Content events; work only happens while the caller pulls.
package orchestrator

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
)

// Compile-time interface check.
var _ Orchestrator = (*Engine)(nil)

// Orchestrator runs a task at a compute level.
type Orchestrator interface {
	// Run returns the event sequence for task at level. It fails only for
	// an invalid level; every other failure is reported through events.
	Run(ctx context.Context, level Level, task Task) (iter.Seq[Event], error)
}

// Task is the input of one orchestrator run.
type Task struct {
	// Prompt is the user's task.
	Prompt string

	// History is prior conversation context. It must not include the turn
	// being answered.
	History completion.History

	Sampling completion.Sampling
}

// Engine implements the low, medium and high compute orchestrators on top
// of a single completion client.
type Engine struct {
	client      completion.Completer
	log         *zap.Logger
	parallelism int
	observer    func(Trace)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithParallelism sets how many sibling subtasks may be solved at once.
// Values below 2 keep solving strictly sequential.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		e.parallelism = max(1, n)
	}
}

// WithObserver registers fn to receive the trace of every finished run.
func WithObserver(fn func(Trace)) Option {
	return func(e *Engine) {
		e.observer = fn
	}
}

// NewEngine creates an Engine that sends every request through client.
func NewEngine(client completion.Completer, opts ...Option) *Engine {
	e := &Engine{
		client:      client,
		log:         zap.NewNop(),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run selects the orchestrator for level.
func (e *Engine) Run(ctx context.Context, level Level, task Task) (iter.Seq[Event], error) {
	switch level {
	case LevelLow:
		return e.Low(ctx, task), nil
	case LevelMedium:
		return e.Medium(ctx, task), nil
	case LevelHigh:
		return e.High(ctx, task), nil
	default:
		return nil, fmt.Errorf("orchestrator: unsupported compute level %d", int(level))
	}
}

// Low streams a direct answer to the task.
func (e *Engine) Low(ctx context.Context, task Task) iter.Seq[Event] {
	return e.traced(LevelLow, task, func(tr *Trace, yield func(Event) bool) bool {
		return e.direct(ctx, task, tr, yield)
	})
}

// Medium decomposes the task once, solves every subtask and streams a
// synthesis of the results. It degrades to Low on any failure.
func (e *Engine) Medium(ctx context.Context, task Task) iter.Seq[Event] {
	return e.traced(LevelMedium, task, func(tr *Trace, yield func(Event) bool) bool {
		return e.medium(ctx, task, tr, yield)
	})
}

// High decomposes the task into stages and every stage into steps, solves
// the steps and streams a synthesis across stages. It degrades to Medium
// when the stage decomposition fails.
func (e *Engine) High(ctx context.Context, task Task) iter.Seq[Event] {
	return e.traced(LevelHigh, task, func(tr *Trace, yield func(Event) bool) bool {
		return e.high(ctx, task, tr, yield)
	})
}

// traced wraps a run body into an event sequence and hands the finished
// trace to the observer. The body returns false once the consumer stops.
func (e *Engine) traced(level Level, task Task, body func(*Trace, func(Event) bool) bool) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		tr := &Trace{Task: task.Prompt, Requested: level, Effective: level}
		completed := body(tr, yield)
		if !completed {
			e.log.Debug("consumer stopped before the run finished", zap.Stringer("level", level))
		}
		if e.observer != nil {
			e.observer(*tr)
		}
	}
}

// streamAnswer streams req and yields the cumulative text after every
// fragment. A stream error is appended to the visible text and ends the
// answer.
func (e *Engine) streamAnswer(ctx context.Context, req completion.Request, tr *Trace, yield func(Event) bool) bool {
	var answer string
	for frag, err := range e.client.Stream(ctx, req) {
		if err != nil {
			e.log.Warn("answer stream failed", zap.Error(err))
			if answer != "" {
				answer += "\n"
			}
			answer += err.Error()
			tr.Answer = answer
			return yield(Content(answer))
		}
		answer += frag
		tr.Answer = answer
		if !yield(Content(answer)) {
			return false
		}
	}
	return true
}
