package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/decompose"
)

func (e *Engine) medium(ctx context.Context, task Task, tr *Trace, yield func(Event) bool) bool {
	tr.Effective = LevelMedium
	if !yield(Status(statusDecomposing)) {
		return false
	}

	control := task.Sampling.Control()
	raw, err := e.client.Complete(ctx, completion.Request{
		Prompt:   decompose.TaskPrompt(task.Prompt),
		Sampling: control,
	})
	if err != nil {
		e.log.Warn("decomposition failed, answering directly", zap.Error(err))
		tr.fallback("decomposition failed: " + err.Error())
		if !yield(Status(statusDecompositionFailed)) {
			return false
		}
		return e.direct(ctx, task, tr, yield)
	}

	items := decompose.Parse(raw)
	if len(items) == 0 {
		e.log.Info("decomposition returned no subtasks, answering directly")
		tr.fallback("decomposition returned no subtasks")
		if !yield(Status(statusDecompositionEmpty)) {
			return false
		}
		return e.direct(ctx, task, tr, yield)
	}

	n := len(items)
	jobs := make([]job, n)
	for i, text := range items {
		jobs[i] = job{index: i + 1, text: text, prompt: decompose.SolvePrompt(task.Prompt, text)}
	}
	if !yield(Status(formatSubtasksFound(n, e.parallelism))) {
		return false
	}

	outs, failed, ok := e.solve(ctx, task, jobs, func(j job) string {
		return formatSolvingSubtask(j.index, n, j.text)
	}, yield)
	tr.Subtasks = subtasksFrom(1, outs)
	if !ok {
		return false
	}
	if failed != nil {
		tr.fallback(fmt.Sprintf("subtask %d failed: %v", failed.index, failed.err))
		if !yield(Status(formatSubtaskFailed(failed.index))) {
			return false
		}
		return e.direct(ctx, task, tr, yield)
	}

	if !yield(Status(statusSubtasksSolved)) {
		return false
	}
	return e.streamAnswer(ctx, completion.Request{
		Prompt:   decompose.SynthesisPrompt(task.Prompt, resultsFrom(outs)),
		Sampling: control,
	}, tr, yield)
}

// subtasksFrom records outcomes as trace subtasks at level.
func subtasksFrom(level int, outs []outcome) []Subtask {
	subs := make([]Subtask, 0, len(outs))
	for _, o := range outs {
		if o.text == "" {
			continue
		}
		s := Subtask{Level: level, Index: o.index, Text: o.text, Result: o.result}
		if o.err != nil {
			s.Result = ""
			s.Error = o.err.Error()
		}
		subs = append(subs, s)
	}
	return subs
}

func resultsFrom(outs []outcome) []decompose.Result {
	res := make([]decompose.Result, len(outs))
	for i, o := range outs {
		res[i] = decompose.Result{Text: o.text, Result: o.result}
	}
	return res
}
