package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
)

// direct sends the task as-is and streams the answer.
func (e *Engine) direct(ctx context.Context, task Task, tr *Trace, yield func(Event) bool) bool {
	tr.Effective = LevelLow
	if !yield(Status(statusDirect)) {
		return false
	}
	e.log.Info("sending direct request", zap.Int("history", len(task.History)))

	return e.streamAnswer(ctx, completion.Request{
		Prompt:   task.Prompt,
		History:  task.History,
		Sampling: task.Sampling,
	}, tr, yield)
}
