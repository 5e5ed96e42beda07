package mcptools

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/decompose"
	"github.com/dusk-indust/deepask/internal/export"
	"github.com/dusk-indust/deepask/internal/orchestrator"
	"github.com/dusk-indust/deepask/internal/session"
)

// Defaults are used for values an ask call omits.
type Defaults struct {
	Level       orchestrator.Level
	Sampling    completion.Sampling
	Parallelism int
}

// AskService handles the MCP tool calls.
type AskService struct {
	client   completion.Completer
	defaults Defaults
	log      *zap.Logger
}

// NewAskService creates an AskService answering through client.
func NewAskService(client completion.Completer, defaults Defaults, log *zap.Logger) *AskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AskService{client: client, defaults: defaults, log: log}
}

// Ask runs one task to completion and returns the final answer with its
// decomposition trace.
func (s *AskService) Ask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(input.Task) == "" {
		return nil, AskOutput{}, errors.New("task is required")
	}

	level := s.defaults.Level
	if input.Level != "" {
		parsed, err := orchestrator.ParseLevel(input.Level)
		if err != nil {
			return nil, AskOutput{}, err
		}
		level = parsed
	}

	sampling := s.defaults.Sampling
	if input.Temperature != nil {
		sampling.Temperature = *input.Temperature
	}
	if input.TopP != nil {
		sampling.TopP = *input.TopP
	}
	if input.TopK != nil {
		sampling.TopK = *input.TopK
	}
	if err := sampling.Validate(); err != nil {
		return nil, AskOutput{}, err
	}

	var trace orchestrator.Trace
	engine := orchestrator.NewEngine(s.client,
		orchestrator.WithLogger(s.log),
		orchestrator.WithParallelism(s.defaults.Parallelism),
		orchestrator.WithObserver(func(tr orchestrator.Trace) { trace = tr }),
	)
	controller := session.NewController(engine, s.log)

	out := AskOutput{Fallbacks: []string{}}
	for u := range controller.Submit(ctx, input.Task, nil, level, sampling) {
		if u.Status != "" {
			out.Status = u.Status
		}
		if n := len(u.History); n > 0 {
			out.Answer = u.History[n-1].Assistant
		}
	}

	out.Requested = level.String()
	out.Effective = trace.Effective.String()
	if len(trace.Fallbacks) > 0 {
		out.Fallbacks = trace.Fallbacks
	}
	out.Trace = export.Mermaid(trace)
	s.log.Info("ask finished",
		zap.String("requested", out.Requested),
		zap.String("effective", out.Effective),
		zap.Int("fallbacks", len(trace.Fallbacks)))
	return nil, out, nil
}

// ParseSubtasks extracts the numbered list items from text.
func (s *AskService) ParseSubtasks(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ParseSubtasksInput,
) (*mcp.CallToolResult, ParseSubtasksOutput, error) {
	items := decompose.Parse(input.Text)
	if items == nil {
		items = []string{}
	}
	return nil, ParseSubtasksOutput{Subtasks: items}, nil
}
