package mcptools

// AskInput is the input for the ask tool. Omitted sampling values fall back
// to the configured defaults.
type AskInput struct {
	Task        string   `json:"task" jsonschema:"the task or question to answer"`
	Level       string   `json:"level,omitempty" jsonschema:"compute level: low, medium or high"`
	Temperature *float64 `json:"temperature,omitempty" jsonschema:"sampling temperature in [0, 2]"`
	TopP        *float64 `json:"topP,omitempty" jsonschema:"nucleus sampling in [0, 1]; 1 disables it"`
	TopK        *int     `json:"topK,omitempty" jsonschema:"top-k sampling; 0 disables it"`
}

// AskOutput is the result of the ask tool.
type AskOutput struct {
	Answer string `json:"answer"`

	// Status is the last status line reported during the run.
	Status string `json:"status"`

	Requested string   `json:"requested"`
	Effective string   `json:"effective"`
	Fallbacks []string `json:"fallbacks"`

	// Trace is the decomposition tree as a Mermaid diagram.
	Trace string `json:"trace"`
}

// ParseSubtasksInput is the input for the parse_subtasks tool.
type ParseSubtasksInput struct {
	Text string `json:"text" jsonschema:"model output containing a numbered list"`
}

// ParseSubtasksOutput is the result of the parse_subtasks tool.
type ParseSubtasksOutput struct {
	Subtasks []string `json:"subtasks"`
}
