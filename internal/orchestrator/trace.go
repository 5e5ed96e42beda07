package orchestrator

// Subtask is one decomposed unit of work. Level is 1 for subtasks and stages,
// 2 for steps. Index is 1-based within the parent.
type Subtask struct {
	Level  int    `json:"level" yaml:"level"`
	Index  int    `json:"index" yaml:"index"`
	Text   string `json:"text" yaml:"text"`
	Result string `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether solving the subtask produced an error.
func (s Subtask) Failed() bool { return s.Error != "" }

// Solved reports whether the subtask was attempted successfully.
func (s Subtask) Solved() bool { return s.Result != "" && s.Error == "" }

// StageSynthesis records how a stage result was produced.
type StageSynthesis string

const (
	// SynthesisSingle means the only step result became the stage result.
	SynthesisSingle StageSynthesis = "single"
	// SynthesisModel means a synthesis call folded the step results.
	SynthesisModel StageSynthesis = "synthesized"
	// SynthesisJoined means synthesis failed and step results were joined.
	SynthesisJoined StageSynthesis = "joined"
	// SynthesisAborted means a step failed and the stage was abandoned.
	SynthesisAborted StageSynthesis = "aborted"
)

// Stage is a level 1 subtask of a high compute run together with the steps
// it was broken into. Steps is never empty.
type Stage struct {
	Subtask `yaml:",inline"`

	Steps []Subtask `json:"steps" yaml:"steps"`

	// Forced is set when the step decomposition failed and the stage
	// itself became its single step.
	Forced bool `json:"forced,omitempty" yaml:"forced,omitempty"`

	Synthesis StageSynthesis `json:"synthesis" yaml:"synthesis"`
}

// Trace records the decomposition tree of one run.
type Trace struct {
	Task      string `json:"task" yaml:"task"`
	Requested Level  `json:"requested" yaml:"requested"`

	// Effective is the level whose algorithm produced the answer.
	Effective Level `json:"effective" yaml:"effective"`

	// Fallbacks lists, in order, why the run degraded.
	Fallbacks []string `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`

	Subtasks []Subtask `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
	Stages   []Stage   `json:"stages,omitempty" yaml:"stages,omitempty"`

	Answer string `json:"answer" yaml:"answer"`
}

func (t *Trace) fallback(reason string) {
	t.Fallbacks = append(t.Fallbacks, reason)
}
