package decompose

import (
	"fmt"
	"strings"
)

// Result pairs a subtask description with the answer produced for it.
type Result struct {
	Text   string
	Result string
}

// TaskPrompt asks for a one-level decomposition of task.
func TaskPrompt(task string) string {
	return fmt.Sprintf("Original task: "%s". Break it down into logical subtasks needed to solve it (numbered list). Be concise.", task)
}

// SolvePrompt asks for a solution to one subtask of task.
func SolvePrompt(task, subtask string) string {
	return fmt.Sprintf("Original overall task: "%s". Current subtask: "%s". Provide a detailed solution or answer for this specific subtask.", task, subtask)
}

// SynthesisPrompt asks to fold subtask results into one answer for task.
func SynthesisPrompt(task string, results []Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original task: "%s". The task was broken down and the results for each subtask are:\n---\n", task)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. Subtask: %s\n   Result: %s\n---\n", i+1, r.Text, r.Result)
	}
	sb.WriteString("Combine these results into a single, coherent, well-formatted final response that directly addresses the original task. Do not just list the subtasks and results; synthesize them.")
	return sb.String()
}

// StagePrompt asks for the high-level stages of a complex task.
func StagePrompt(task string) string {
	return fmt.Sprintf("Original complex task: "%s". Break this down into major high-level stages or components (Level 1 - numbered list). Keep items distinct and logical.", task)
}

// StepPrompt asks for the steps of one stage. The model is told to answer
// with a numbered list even when the stage is atomic.
func StepPrompt(stage string) string {
	return fmt.Sprintf("Current high-level stage (Level 1): "%s". Break THIS stage down into smaller, actionable steps (Level 2 - numbered list). "+
		"You MUST provide the steps as a numbered list starting with \"1.\". Even if there is only one step, write \"1. %s\". "+
		"Do not use phrases like \"No further decomposition needed\". Just provide the list.", stage, stage)
}

// StepSolvePrompt asks for a solution to one step of a stage. When the stage
// could not be broken down, the prompt asks to solve the stage itself.
func StepSolvePrompt(task, stage, step string, forced bool) string {
	if forced {
		return fmt.Sprintf("Original task: "%s".\nCurrent Level 1 stage: "%s".\nThis stage could not be broken down further. Solve this specific stage in detail.", task, stage)
	}
	return fmt.Sprintf("Original task: "%s".\nCurrent Level 1 stage: "%s".\nCurrent Level 2 step: "%s".\nSolve this specific Level 2 step in detail.", task, stage, step)
}

// StageSynthesisPrompt asks to fold the step results of one stage.
func StageSynthesisPrompt(stage string, results []Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The goal for this stage was: "%s". The results for the Level 2 steps taken are:\n---\n", stage)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. Step: %s\n   Result: %s\n---\n", i+1, r.Text, r.Result)
	}
	fmt.Fprintf(&sb, "Synthesize these results into a single, coherent answer for the Level 1 stage: "%s". Focus on fulfilling the goal of this stage.", stage)
	return sb.String()
}

// FinalSynthesisPrompt asks to fold all stage results into the final answer.
func FinalSynthesisPrompt(task string, stages []Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original complex task: "%s". The task was addressed in the following major stages, with these results:\n---\n", task)
	for i, r := range stages {
		fmt.Fprintf(&sb, "%d. Stage: %s\n   Overall Result for Stage: %s\n---\n", i+1, r.Text, r.Result)
	}
	sb.WriteString("Synthesize all these stage results into a comprehensive, well-structured final answer that directly addresses the original complex task. Ensure coherence and clarity.")
	return sb.String()
}

// JoinStepResults concatenates step results verbatim, labelled by step. It
// stands in for a stage synthesis that failed.
func JoinStepResults(results []Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Step %d: %s\nResult: %s", i+1, r.Text, r.Result)
	}
	return strings.Join(parts, "\n")
}
