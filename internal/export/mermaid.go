package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/deepask/internal/orchestrator"
)

// Mermaid produces a graph TD diagram of the decomposition tree: the task at
// the root, then subtasks or stages, then steps. Failed nodes are styled.
func Mermaid(tr orchestrator.Trace) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	fmt.Fprintf(&sb, "  T[\"%s\"]\n", label(tr.Task))

	var failed []string
	for _, s := range tr.Subtasks {
		id := fmt.Sprintf("S%d", s.Index)
		fmt.Fprintf(&sb, "  T --> %s[\"%d. %s\"]\n", id, s.Index, label(s.Text))
		if s.Failed() {
			failed = append(failed, id)
		}
	}

	for _, st := range tr.Stages {
		stageID := fmt.Sprintf("L%d", st.Index)
		fmt.Fprintf(&sb, "  T --> %s[\"%d. %s\"]\n", stageID, st.Index, label(st.Text))
		if st.Synthesis == orchestrator.SynthesisAborted {
			failed = append(failed, stageID)
		}
		for _, step := range st.Steps {
			stepID := fmt.Sprintf("L%dS%d", st.Index, step.Index)
			fmt.Fprintf(&sb, "  %s --> %s[\"%d.%d %s\"]\n", stageID, stepID, st.Index, step.Index, label(step.Text))
			if step.Failed() {
				failed = append(failed, stepID)
			}
		}
	}

	if len(failed) > 0 {
		sb.WriteString("  classDef failed fill:#fdd,stroke:#c33\n")
		fmt.Fprintf(&sb, "  class %s failed\n", strings.Join(failed, ","))
	}
	return sb.String()
}

// label makes text safe inside a quoted Mermaid node label.
func label(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	text = strings.ReplaceAll(text, `"`, "#quot;")
	r := []rune(text)
	if len(r) > 40 {
		return string(r[:40]) + "..."
	}
	return text
}
