package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/decompose"
)

func (e *Engine) high(ctx context.Context, task Task, tr *Trace, yield func(Event) bool) bool {
	tr.Effective = LevelHigh
	if !yield(Status(statusStageDecomposing)) {
		return false
	}

	control := task.Sampling.Control()
	raw, err := e.client.Complete(ctx, completion.Request{
		Prompt:   decompose.StagePrompt(task.Prompt),
		Sampling: control,
	})
	if err != nil {
		e.log.Warn("stage decomposition failed, falling back to medium", zap.Error(err))
		tr.fallback("stage decomposition failed: " + err.Error())
		if !yield(Status(statusStageDecompositionFail)) {
			return false
		}
		return e.medium(ctx, task, tr, yield)
	}

	stages := decompose.Parse(raw)
	if len(stages) == 0 {
		e.log.Info("stage decomposition returned no stages, falling back to medium")
		tr.fallback("stage decomposition returned no stages")
		if !yield(Status(statusStageDecompositionNone)) {
			return false
		}
		return e.medium(ctx, task, tr, yield)
	}

	if !yield(Status(formatStagesFound(len(stages)))) {
		return false
	}

	results := make([]decompose.Result, 0, len(stages))
	for i, text := range stages {
		st, ok := e.stage(ctx, task, i+1, len(stages), text, yield)
		tr.Stages = append(tr.Stages, st)
		if !ok {
			return false
		}
		results = append(results, decompose.Result{Text: st.Text, Result: st.Result})
	}

	if !yield(Status(statusStagesProcessed)) {
		return false
	}
	return e.streamAnswer(ctx, completion.Request{
		Prompt:   decompose.FinalSynthesisPrompt(task.Prompt, results),
		Sampling: control,
	}, tr, yield)
}

// stage breaks one stage into steps, solves them and folds their results
// into the stage result. A failure inside the stage never escapes it: the
// step list is forced to the stage itself when decomposition fails, and a
// failed step turns the stage result into an error marker.
func (e *Engine) stage(ctx context.Context, task Task, i, n int, text string, yield func(Event) bool) (Stage, bool) {
	st := Stage{Subtask: Subtask{Level: 1, Index: i, Text: text}}
	log := e.log.With(zap.Int("stage", i))
	control := task.Sampling.Control()

	if !yield(Status(formatStageStart(i, n, text))) {
		return st, false
	}

	raw, err := e.client.Complete(ctx, completion.Request{
		Prompt:   decompose.StepPrompt(text),
		Sampling: control,
	})
	var steps []string
	switch {
	case err != nil:
		log.Warn("step decomposition failed, forcing single step", zap.Error(err))
		if !yield(Status(formatStepDecompositionFailed(i, err))) {
			return st, false
		}
	default:
		steps = decompose.Parse(raw)
		if len(steps) == 0 {
			log.Info("step decomposition returned no steps, forcing single step")
			if !yield(Status(formatStepDecompositionEmpty(i))) {
				return st, false
			}
		}
	}
	if len(steps) == 0 {
		steps = []string{text}
		st.Forced = true
	}

	single := len(steps) == 1 && steps[0] == text
	jobs := make([]job, len(steps))
	for j, step := range steps {
		jobs[j] = job{index: j + 1, text: step, prompt: decompose.StepSolvePrompt(task.Prompt, text, step, single)}
	}
	st.Steps = plannedSteps(jobs)

	if !yield(Status(formatStageSteps(i, len(steps)))) {
		return st, false
	}
	outs, failed, ok := e.solve(ctx, task, jobs, func(j job) string {
		return formatSolvingStep(i, n, j.index, len(jobs), j.text)
	}, yield)
	mergeOutcomes(st.Steps, outs)
	if !ok {
		return st, false
	}
	if failed != nil {
		st.Result = stageErrorMarker(i, failed.err)
		st.Synthesis = SynthesisAborted
		return st, yield(Status(formatStepFailed(failed.index, i)))
	}

	if !yield(Status(formatStageSynthesizing(i, len(outs)))) {
		return st, false
	}
	if len(outs) == 1 {
		st.Result = outs[0].result
		st.Synthesis = SynthesisSingle
		return st, true
	}

	stepResults := resultsFrom(outs)
	merged, err := e.client.Complete(ctx, completion.Request{
		Prompt:   decompose.StageSynthesisPrompt(text, stepResults),
		Sampling: control,
	})
	if err != nil {
		log.Warn("stage synthesis failed, joining step results", zap.Error(err))
		st.Result = decompose.JoinStepResults(stepResults)
		st.Synthesis = SynthesisJoined
		return st, yield(Status(formatStageSynthesisFailed(i)))
	}
	st.Result = merged
	st.Synthesis = SynthesisModel
	return st, true
}

func plannedSteps(jobs []job) []Subtask {
	steps := make([]Subtask, len(jobs))
	for i, j := range jobs {
		steps[i] = Subtask{Level: 2, Index: j.index, Text: j.text}
	}
	return steps
}

// mergeOutcomes copies solved results into the planned steps by index.
func mergeOutcomes(steps []Subtask, outs []outcome) {
	for _, o := range outs {
		if o.index < 1 || o.index > len(steps) {
			continue
		}
		s := &steps[o.index-1]
		if o.err != nil {
			s.Error = o.err.Error()
			continue
		}
		s.Result = o.result
	}
}
