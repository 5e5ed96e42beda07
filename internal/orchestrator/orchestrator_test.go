package orchestrator

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/deepask/internal/completion"
)

// fakeClient is a Completer driven by handler functions. It records every
// request it receives.
type fakeClient struct {
	mu      sync.Mutex
	calls   []completion.Request
	streams []completion.Request

	complete func(req completion.Request) (string, error)
	stream   func(req completion.Request) ([]string, error)
}

func (f *fakeClient) Complete(ctx context.Context, req completion.Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.complete == nil {
		return "", errors.New("unexpected Complete call")
	}
	return f.complete(req)
}

func (f *fakeClient) Stream(ctx context.Context, req completion.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.mu.Lock()
		f.streams = append(f.streams, req)
		f.mu.Unlock()
		if f.stream == nil {
			yield("", errors.New("unexpected Stream call"))
			return
		}
		frags, err := f.stream(req)
		for _, frag := range frags {
			if !yield(frag, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}

func (f *fakeClient) completeCalls() []completion.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completion.Request(nil), f.calls...)
}

func (f *fakeClient) streamCalls() []completion.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completion.Request(nil), f.streams...)
}

// countMatching returns how many recorded requests contain fragment.
func countMatching(reqs []completion.Request, fragment string) int {
	n := 0
	for _, r := range reqs {
		if strings.Contains(r.Prompt, fragment) {
			n++
		}
	}
	return n
}

// Fragments that identify each prompt kind.
const (
	taskPromptMark      = "Break it down into logical subtasks"
	solvePromptMark     = "Current subtask:"
	synthesisMark       = "Combine these results"
	stagePromptMark     = "major high-level stages"
	stepPromptMark      = "Break THIS stage down"
	stepSolveMark       = "Solve this specific Level 2 step"
	forcedSolveMark     = "could not be broken down further"
	stageSynthesisMark  = "Focus on fulfilling the goal of this stage"
	finalSynthesisMark  = "Synthesize all these stage results"
	networkTimeoutError = "timeout"
)

func networkErr(msg string) error {
	return &completion.Error{Kind: completion.KindTransport, Err: errors.New(msg)}
}

func echoStream(frags ...string) func(completion.Request) ([]string, error) {
	return func(completion.Request) ([]string, error) { return frags, nil }
}

func collect(seq iter.Seq[Event]) []Event {
	var events []Event
	for ev := range seq {
		events = append(events, ev)
	}
	return events
}

func lastContent(events []Event) string {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventContent {
			return events[i].Text
		}
	}
	return ""
}

func sampleTask() Task {
	return Task{
		Prompt: "2+2?",
		History: completion.History{
			{User: "hi", Assistant: "hello"},
		},
		Sampling: completion.Sampling{Temperature: 0.8, TopP: 0.9, TopK: 40},
	}
}

func TestLow_StreamsCumulativeContent(t *testing.T) {
	fc := &fakeClient{stream: echoStream("4", ".")}
	e := NewEngine(fc)

	events := collect(e.Low(context.Background(), sampleTask()))

	assert.Equal(t, []Event{
		Status(statusDirect),
		Content("4"),
		Content("4."),
	}, events)

	streams := fc.streamCalls()
	require.Len(t, streams, 1)
	assert.Equal(t, "2+2?", streams[0].Prompt)
	assert.Equal(t, sampleTask().History, streams[0].History)
	assert.Equal(t, 0.8, streams[0].Sampling.Temperature)
	assert.Empty(t, fc.completeCalls())
}

func TestLow_StreamErrorIsAppendedToContent(t *testing.T) {
	fc := &fakeClient{stream: func(completion.Request) ([]string, error) {
		return []string{"partial"}, networkErr("connection reset")
	}}
	e := NewEngine(fc)

	events := collect(e.Low(context.Background(), sampleTask()))

	require.Len(t, events, 3)
	assert.Equal(t, "partial\nNetwork error: connection reset", lastContent(events))
}

func TestLow_IsLazy(t *testing.T) {
	fc := &fakeClient{stream: echoStream("x")}
	e := NewEngine(fc)

	seq := e.Low(context.Background(), sampleTask())
	assert.Empty(t, fc.streamCalls())

	for ev := range seq {
		assert.Equal(t, Status(statusDirect), ev)
		break
	}
	assert.Empty(t, fc.streamCalls(), "no request before the first content is pulled")
}

func TestMedium_Success(t *testing.T) {
	fc := &fakeClient{
		complete: func(req completion.Request) (string, error) {
			switch {
			case strings.Contains(req.Prompt, taskPromptMark):
				return "1. Add the numbers\n2. Check the result", nil
			case strings.Contains(req.Prompt, "Add the numbers"):
				return "sum is 4", nil
			case strings.Contains(req.Prompt, "Check the result"):
				return "4 is right", nil
			}
			return "", errors.New("unexpected prompt")
		},
		stream: echoStream("The answer ", "is 4."),
	}
	e := NewEngine(fc)

	events := collect(e.Medium(context.Background(), sampleTask()))

	assert.Equal(t, []Event{
		Status(statusDecomposing),
		Status(formatSubtasksFound(2, 1)),
		Status(formatSolvingSubtask(1, 2, "Add the numbers")),
		Status(formatSolvingSubtask(2, 2, "Check the result")),
		Status(statusSubtasksSolved),
		Content("The answer "),
		Content("The answer is 4."),
	}, events)

	calls := fc.completeCalls()
	require.Len(t, calls, 3)

	// Decomposition: control temperature, no history.
	assert.InDelta(t, 0.4, calls[0].Sampling.Temperature, 1e-9)
	assert.Empty(t, calls[0].History)

	// Solving: user temperature with history.
	for _, c := range calls[1:] {
		assert.Contains(t, c.Prompt, solvePromptMark)
		assert.Equal(t, 0.8, c.Sampling.Temperature)
		assert.Equal(t, sampleTask().History, c.History)
	}

	streams := fc.streamCalls()
	require.Len(t, streams, 1)
	synth := streams[0]
	assert.Contains(t, synth.Prompt, synthesisMark)
	assert.InDelta(t, 0.4, synth.Sampling.Temperature, 1e-9)
	assert.Empty(t, synth.History)
	assert.Less(t, strings.Index(synth.Prompt, "sum is 4"), strings.Index(synth.Prompt, "4 is right"))
}

func TestMedium_DecompositionErrorDegradesToLow(t *testing.T) {
	newClient := func() *fakeClient {
		return &fakeClient{
			complete: func(completion.Request) (string, error) {
				return "", networkErr(networkTimeoutError)
			},
			stream: echoStream("4", "."),
		}
	}

	medium := collect(NewEngine(newClient()).Medium(context.Background(), sampleTask()))
	low := collect(NewEngine(newClient()).Low(context.Background(), sampleTask()))

	require.Len(t, medium, 2+len(low))
	assert.Equal(t, Status(statusDecomposing), medium[0])
	assert.Equal(t, Status(statusDecompositionFailed), medium[1])
	assert.Equal(t, low, medium[2:])
	assert.Equal(t, lastContent(low), lastContent(medium))
}

func TestMedium_EmptyDecompositionDegradesToLow(t *testing.T) {
	fc := &fakeClient{
		complete: func(completion.Request) (string, error) {
			return "I would rather just answer.", nil
		},
		stream: echoStream("4"),
	}
	var trace Trace
	e := NewEngine(fc, WithObserver(func(tr Trace) { trace = tr }))

	events := collect(e.Medium(context.Background(), sampleTask()))

	assert.Equal(t, []Event{
		Status(statusDecomposing),
		Status(statusDecompositionEmpty),
		Status(statusDirect),
		Content("4"),
	}, events)
	assert.Equal(t, LevelMedium, trace.Requested)
	assert.Equal(t, LevelLow, trace.Effective)
	assert.Len(t, trace.Fallbacks, 1)
}

func TestMedium_SubtaskErrorAbortsToDirect(t *testing.T) {
	fc := &fakeClient{
		complete: func(req completion.Request) (string, error) {
			switch {
			case strings.Contains(req.Prompt, taskPromptMark):
				return "1. first\n2. second\n3. third", nil
			case strings.Contains(req.Prompt, `"second"`):
				return "", networkErr("reset")
			}
			return "ok", nil
		},
		stream: echoStream("direct"),
	}
	e := NewEngine(fc)

	events := collect(e.Medium(context.Background(), sampleTask()))

	assert.Equal(t, []Event{
		Status(statusDecomposing),
		Status(formatSubtasksFound(3, 1)),
		Status(formatSolvingSubtask(1, 3, "first")),
		Status(formatSolvingSubtask(2, 3, "second")),
		Status(formatSubtaskFailed(2)),
		Status(statusDirect),
		Content("direct"),
	}, events)

	assert.Zero(t, countMatching(fc.completeCalls(), `"third"`), "solving stops at the first failure")
	streams := fc.streamCalls()
	require.Len(t, streams, 1)
	assert.Equal(t, "2+2?", streams[0].Prompt, "the original task is answered directly")
}

func TestHigh_StageDecompositionFailureMatchesMedium(t *testing.T) {
	tests := []struct {
		name   string
		reply  func() (string, error)
		status string
	}{
		{
			name:   "error",
			reply:  func() (string, error) { return "", networkErr(networkTimeoutError) },
			status: statusStageDecompositionFail,
		},
		{
			name:   "empty",
			reply:  func() (string, error) { return "no list here", nil },
			status: statusStageDecompositionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newClient := func() *fakeClient {
				return &fakeClient{
					complete: func(req completion.Request) (string, error) {
						switch {
						case strings.Contains(req.Prompt, stagePromptMark):
							return tt.reply()
						case strings.Contains(req.Prompt, taskPromptMark):
							return "1. only", nil
						}
						return "solved", nil
					},
					stream: echoStream("final"),
				}
			}

			var trace Trace
			high := collect(NewEngine(newClient(), WithObserver(func(tr Trace) { trace = tr })).
				High(context.Background(), sampleTask()))
			medium := collect(NewEngine(newClient()).Medium(context.Background(), sampleTask()))

			require.Len(t, high, 2+len(medium))
			assert.Equal(t, Status(statusStageDecomposing), high[0])
			assert.Equal(t, Status(tt.status), high[1])
			assert.Equal(t, medium, high[2:])

			assert.Equal(t, LevelHigh, trace.Requested)
			assert.Equal(t, LevelMedium, trace.Effective)
			require.Len(t, trace.Subtasks, 1)
			assert.Equal(t, "solved", trace.Subtasks[0].Result)
		})
	}
}

func TestHigh_ForcedSingleStep(t *testing.T) {
	fc := &fakeClient{
		complete: func(req completion.Request) (string, error) {
			switch {
			case strings.Contains(req.Prompt, stagePromptMark):
				return "1. Compute the sum", nil
			case strings.Contains(req.Prompt, stepPromptMark):
				return "This stage is atomic.", nil
			case strings.Contains(req.Prompt, forcedSolveMark):
				return "the sum is 4", nil
			}
			return "", errors.New("unexpected prompt")
		},
		stream: echoStream("4"),
	}
	var trace Trace
	e := NewEngine(fc, WithObserver(func(tr Trace) { trace = tr }))

	events := collect(e.High(context.Background(), sampleTask()))

	assert.Contains(t, events, Status(formatStepDecompositionEmpty(1)))
	assert.Equal(t, "4", lastContent(events))

	require.Len(t, trace.Stages, 1)
	st := trace.Stages[0]
	require.Len(t, st.Steps, 1)
	assert.Equal(t, "Compute the sum", st.Steps[0].Text)
	assert.True(t, st.Forced)
	assert.Equal(t, "the sum is 4", st.Result)
	assert.Equal(t, SynthesisSingle, st.Synthesis)

	calls := fc.completeCalls()
	assert.Zero(t, countMatching(calls, stageSynthesisMark), "a single step needs no stage synthesis")
	assert.Equal(t, 1, countMatching(calls, forcedSolveMark))

	streams := fc.streamCalls()
	require.Len(t, streams, 1)
	assert.Contains(t, streams[0].Prompt, "the sum is 4")
}

func TestHigh_StepDecompositionErrorForcesStage(t *testing.T) {
	fc := &fakeClient{
		complete: func(req completion.Request) (string, error) {
			switch {
			case strings.Contains(req.Prompt, stagePromptMark):
				return "1. Compute the sum", nil
			case strings.Contains(req.Prompt, stepPromptMark):
				return "", networkErr("down")
			}
			return "solved", nil
		},
		stream: echoStream("done"),
	}
	var trace Trace
	e := NewEngine(fc, WithObserver(func(tr Trace) { trace = tr }))

	events := collect(e.High(context.Background(), sampleTask()))

	assert.Contains(t, events, Status(formatStepDecompositionFailed(1, networkErr("down"))))
	require.Len(t, trace.Stages, 1)
	assert.Equal(t, []string{"Compute the sum"}, stepTexts(trace.Stages[0]))
	assert.True(t, trace.Stages[0].Forced)
}

func TestHigh_ModelEchoedStageUsesForcedPrompt(t *testing.T) {
	fc := &fakeClient{
		complete: func(req completion.Request) (string, error) {
			switch {
			case strings.Contains(req.Prompt, stagePromptMark):
				return "1. Compute the sum", nil
			case strings.Contains(req.Prompt, stepPromptMark):
				return "1. Compute the sum", nil
			}
			return "solved", nil
		},
		stream: echoStream("done"),
	}
	var trace Trace
	e := NewEngine(fc, WithObserver(func(tr Trace) { trace = tr }))

	collect(e.High(context.Background(), sampleTask()))

	assert.Equal(t, 1, countMatching(fc.completeCalls(), forcedSolveMark))
	assert.Zero(t, countMatching(fc.completeCalls(), stepSolveMark))
	require.Len(t, trace.Stages, 1)
	assert.False(t, trace.Stages[0].Forced)
}

func TestHigh_StageFailureIsIsolated(t *testing.T) {
	fc := &fakeClient{
		complete: func(req completion.Request) (string, error) {
			switch {
			case strings.Contains(req.Prompt, stagePromptMark):
				return "1. Gather data\n2. Summarize", nil
			case strings.Contains(req.Prompt, stepPromptMark) && strings.Contains(req.Prompt, "Gather data"):
				return "1. Query the source", nil
			case strings.Contains(req.Prompt, stepPromptMark):
				return "1. Write summary", nil
			case strings.Contains(req.Prompt, "Query the source"):
				return "", networkErr("refused")
			case strings.Contains(req.Prompt, "Write summary"):
				return "summary text", nil
			}
			return "", errors.New("unexpected prompt")
		},
		stream: echoStream("final"),
	}
	var trace Trace
	e := NewEngine(fc, WithObserver(func(tr Trace) { trace = tr }))

	events := collect(e.High(context.Background(), sampleTask()))

	assert.Contains(t, events, Status(formatStepFailed(1, 1)))
	assert.Contains(t, events, Status(formatStageStart(2, 2, "Summarize")))
	assert.Equal(t, "final", lastContent(events))

	require.Len(t, trace.Stages, 2)
	marker := stageErrorMarker(1, networkErr("refused"))
	assert.Equal(t, marker, trace.Stages[0].Result)
	assert.Equal(t, SynthesisAborted, trace.Stages[0].Synthesis)
	assert.True(t, trace.Stages[0].Steps[0].Failed())
	assert.Equal(t, "summary text", trace.Stages[1].Result)

	streams := fc.streamCalls()
	require.Len(t, streams, 1)
	final := streams[0]
	assert.Contains(t, final.Prompt, finalSynthesisMark)
	assert.Contains(t, final.Prompt, marker)
	assert.Contains(t, final.Prompt, "summary text")
	assert.Less(t, strings.Index(final.Prompt, marker), strings.Index(final.Prompt, "summary text"))
}

func TestHigh_StageSynthesis(t *testing.T) {
	tests := []struct {
		name      string
		synth     func() (string, error)
		want      string
		synthesis StageSynthesis
	}{
		{
			name:      "synthesized",
			synth:     func() (string, error) { return "merged", nil },
			want:      "merged",
			synthesis: SynthesisModel,
		},
		{
			name:      "joined on error",
			synth:     func() (string, error) { return "", networkErr("busy") },
			want:      "Step 1: a\nResult: ra\nStep 2: b\nResult: rb",
			synthesis: SynthesisJoined,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{
				complete: func(req completion.Request) (string, error) {
					switch {
					case strings.Contains(req.Prompt, stagePromptMark):
						return "1. Stage one", nil
					case strings.Contains(req.Prompt, stepPromptMark):
						return "1. a\n2. b", nil
					case strings.Contains(req.Prompt, stageSynthesisMark):
						assert.InDelta(t, 0.4, req.Sampling.Temperature, 1e-9)
						return tt.synth()
					case strings.Contains(req.Prompt, `step: "a"`):
						return "ra", nil
					case strings.Contains(req.Prompt, `step: "b"`):
						return "rb", nil
					}
					return "", errors.New("unexpected prompt")
				},
				stream: echoStream("final"),
			}
			var trace Trace
			e := NewEngine(fc, WithObserver(func(tr Trace) { trace = tr }))

			collect(e.High(context.Background(), sampleTask()))

			require.Len(t, trace.Stages, 1)
			assert.Equal(t, tt.want, trace.Stages[0].Result)
			assert.Equal(t, tt.synthesis, trace.Stages[0].Synthesis)
			assert.Equal(t, 2, countMatching(fc.completeCalls(), stepSolveMark))
		})
	}
}

func TestHigh_StructuralCallsUseControlTemperature(t *testing.T) {
	fc := &fakeClient{
		complete: func(req completion.Request) (string, error) {
			switch {
			case strings.Contains(req.Prompt, stagePromptMark):
				return "1. s", nil
			case strings.Contains(req.Prompt, stepPromptMark):
				return "1. x\n2. y", nil
			case strings.Contains(req.Prompt, stageSynthesisMark):
				return "merged", nil
			}
			return "r", nil
		},
		stream: echoStream("final"),
	}
	task := sampleTask()
	task.Sampling.Temperature = 0.1

	collect(NewEngine(fc).High(context.Background(), task))

	for _, c := range fc.completeCalls() {
		structural := !strings.Contains(c.Prompt, stepSolveMark)
		if structural {
			assert.Equal(t, completion.MinControlTemperature, c.Sampling.Temperature, c.Prompt)
			assert.Empty(t, c.History)
		} else {
			assert.Equal(t, 0.1, c.Sampling.Temperature)
			assert.Equal(t, task.History, c.History)
		}
		assert.Equal(t, 0.9, c.Sampling.TopP)
		assert.Equal(t, 40, c.Sampling.TopK)
	}
	streams := fc.streamCalls()
	require.Len(t, streams, 1)
	assert.Equal(t, completion.MinControlTemperature, streams[0].Sampling.Temperature)
}

func TestEngine_StopsWhenConsumerStops(t *testing.T) {
	fc := &fakeClient{
		complete: func(completion.Request) (string, error) { return "1. a\n2. b", nil },
		stream:   echoStream("x"),
	}
	e := NewEngine(fc)

	var seen int
	for range e.Medium(context.Background(), sampleTask()) {
		seen++
		if seen == 4 {
			break
		}
	}

	// decompose, found, solving 1, solving 2: the second solve never starts
	assert.Len(t, fc.completeCalls(), 2)
	assert.Empty(t, fc.streamCalls())
}

func TestEngine_Run(t *testing.T) {
	fc := &fakeClient{stream: echoStream("ok")}
	e := NewEngine(fc)

	seq, err := e.Run(context.Background(), LevelLow, sampleTask())
	require.NoError(t, err)
	assert.Equal(t, "ok", lastContent(collect(seq)))

	_, err = e.Run(context.Background(), Level(7), sampleTask())
	assert.Error(t, err)
	_, err = e.Run(context.Background(), LevelUnknown, sampleTask())
	assert.Error(t, err)
}

func TestEngine_ObserverSeesAnswer(t *testing.T) {
	fc := &fakeClient{stream: echoStream("4", ".")}
	var traces []Trace
	e := NewEngine(fc, WithObserver(func(tr Trace) { traces = append(traces, tr) }))

	collect(e.Low(context.Background(), sampleTask()))

	require.Len(t, traces, 1)
	assert.Equal(t, "2+2?", traces[0].Task)
	assert.Equal(t, "4.", traces[0].Answer)
	assert.Equal(t, LevelLow, traces[0].Effective)
}

func stepTexts(st Stage) []string {
	out := make([]string, len(st.Steps))
	for i, s := range st.Steps {
		out[i] = s.Text
	}
	return out
}
