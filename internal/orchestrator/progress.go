package orchestrator

import "fmt"

// Status texts emitted by the orchestrators. Texts that carry positions use
// 1-based indices.
const (
	statusDirect = "Sending request directly to LLM..."

	statusDecomposing            = "Starting task decomposition (1 level)..."
	statusDecompositionFailed    = "Decomposition failed. Answering directly..."
	statusDecompositionEmpty     = "Decomposition returned no subtasks. Answering directly..."
	statusSubtasksSolved         = "All subtasks solved. Synthesizing final response..."
	statusStageDecomposing       = "Starting task decomposition (Level 1)..."
	statusStageDecompositionFail = "Level 1 decomposition failed. Falling back to Medium compute mode..."
	statusStageDecompositionNone = "Level 1 decomposition returned no subtasks. Falling back to Medium compute mode..."
	statusStagesProcessed        = "All Level 1 stages processed. Synthesizing final response..."
)

func formatSubtasksFound(n, parallelism int) string {
	if parallelism > 1 && n > 1 {
		return fmt.Sprintf("Task divided into %d subtasks. Solving up to %d at a time...", n, parallelism)
	}
	return fmt.Sprintf("Task divided into %d subtasks. Solving them one by one...", n)
}

func formatSolvingSubtask(i, n int, text string) string {
	return fmt.Sprintf("Solving subtask %d/%d: %q...", i, n, text)
}

func formatSubtaskFailed(i int) string {
	return fmt.Sprintf("Error solving subtask %d. Aborting and attempting direct answer...", i)
}

func formatStagesFound(n int) string {
	return fmt.Sprintf("Task divided into %d Level 1 stages. Processing stages...", n)
}

func formatStageStart(i, n int, text string) string {
	return fmt.Sprintf("Processing Level 1 stage %d/%d: %q. Starting mandatory Level 2 decomposition...", i, n, text)
}

func formatStepDecompositionFailed(stage int, err error) string {
	return fmt.Sprintf("Stage %d: L2 decomposition failed (%v). Forcing L1 task as single L2 step.", stage, err)
}

func formatStepDecompositionEmpty(stage int) string {
	return fmt.Sprintf("Stage %d: L2 decomposition format issue or LLM refusal. Forcing L1 task as single L2 step.", stage)
}

func formatStageSteps(stage, steps int) string {
	return fmt.Sprintf("Stage %d processing %d Level 2 step(s)...", stage, steps)
}

func formatSolvingStep(stage, stages, step, steps int, text string) string {
	return fmt.Sprintf("Stage %d/%d, Solving L2 step %d/%d: %q...", stage, stages, step, steps, text)
}

func formatStepFailed(step, stage int) string {
	return fmt.Sprintf("Error solving L2 step %d in stage %d. Aborting stage...", step, stage)
}

func formatStageSynthesizing(stage, steps int) string {
	return fmt.Sprintf("Stage %d: Synthesizing results from %d Level 2 step(s)...", stage, steps)
}

func formatStageSynthesisFailed(stage int) string {
	return fmt.Sprintf("Error synthesizing L2 results for stage %d. Using raw results...", stage)
}

// stageErrorMarker is the result recorded for a stage whose step failed.
func stageErrorMarker(stage int, err error) string {
	return fmt.Sprintf("[Error processing stage %d: %v]", stage, err)
}
