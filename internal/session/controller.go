// Package session drives an orchestrator for one chat turn and folds its
// events into the visible conversation history.
package session

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/orchestrator"
)

// StatusPrefix marks every non-empty status line shown to the user.
const StatusPrefix = "[Status] "

const (
	statusProcessing     = StatusPrefix + "Processing request..."
	statusError          = StatusPrefix + "Error"
	statusErrorRun       = StatusPrefix + "Error Encountered"
	statusErrorRegen     = StatusPrefix + "Error Encountered during Regeneration"
	statusHistoryEmpty   = StatusPrefix + "Cannot regenerate: Chat history is empty."
	statusNoUserMessage  = StatusPrefix + "Cannot regenerate: Last entry is not a user message."
	unknownLevelMessage  = "Error: Unknown computation level selected."
	regenPreviewMaxRunes = 50
)

// Update is one item of the controller's output sequence.
type Update struct {
	// History is a snapshot of the conversation including the pending turn.
	History completion.History `json:"history"`

	// Input is the new content of the input box. It is always cleared.
	Input string `json:"input"`

	// Status is the current status line. The final update of a run has an
	// empty status.
	Status string `json:"status"`
}

// Controller turns submit and regenerate requests into update sequences.
type Controller struct {
	runner orchestrator.Orchestrator
	log    *zap.Logger
}

// NewController creates a Controller that runs tasks through runner.
func NewController(runner orchestrator.Orchestrator, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{runner: runner, log: log}
}

// Submit answers message at level. history is not modified; every update
// carries its own copy with the new turn appended.
func (c *Controller) Submit(ctx context.Context, message string, history completion.History, level orchestrator.Level, sampling completion.Sampling) iter.Seq[Update] {
	return func(yield func(Update) bool) {
		hist := append(history.Clone(), completion.Turn{User: message})
		c.drive(ctx, run{
			history:  hist,
			level:    level,
			sampling: sampling,
			status:   statusProcessing,
			failed:   statusErrorRun,
		}, yield)
	}
}

// Regenerate reruns the last turn of history at level. It yields a single
// explanatory update and calls no orchestrator when there is nothing to
// regenerate.
func (c *Controller) Regenerate(ctx context.Context, history completion.History, level orchestrator.Level, sampling completion.Sampling) iter.Seq[Update] {
	return func(yield func(Update) bool) {
		if len(history) == 0 {
			yield(Update{History: history.Clone(), Status: statusHistoryEmpty})
			return
		}
		last := history[len(history)-1]
		if last.User == "" {
			yield(Update{History: history.Clone(), Status: statusNoUserMessage})
			return
		}

		hist := history.Clone()
		hist[len(hist)-1].Assistant = ""
		c.log.Info("regenerating last turn", zap.Stringer("level", level), zap.Int("history", len(hist)-1))
		c.drive(ctx, run{
			history:  hist,
			level:    level,
			sampling: sampling,
			status:   fmt.Sprintf("%sRegenerating response for: %q...", StatusPrefix, preview(last.User)),
			failed:   statusErrorRegen,
		}, yield)
	}
}

// run is one controller invocation. history ends with the pending turn.
type run struct {
	history  completion.History
	level    orchestrator.Level
	sampling completion.Sampling
	status   string
	failed   string
}

func (c *Controller) drive(ctx context.Context, r run, yield func(Update) bool) {
	hist := r.history
	pending := &hist[len(hist)-1]
	status := r.status

	if !yield(snapshot(hist, status)) {
		return
	}

	seq, err := c.runner.Run(ctx, r.level, orchestrator.Task{
		Prompt:   pending.User,
		History:  hist[:len(hist)-1].Clone(),
		Sampling: r.sampling,
	})
	if err != nil {
		c.log.Error("cannot start run", zap.Error(err))
		pending.Assistant = unknownLevelMessage
		yield(snapshot(hist, statusError))
		return
	}

	stopped, err := c.consume(seq, hist, &status, yield)
	if stopped {
		return
	}
	if err != nil {
		c.log.Error("run failed", zap.Error(err))
		pending.Assistant = fmt.Sprintf("An error occurred during processing: %v", err)
		yield(snapshot(hist, r.failed))
		return
	}
	yield(snapshot(hist, ""))
}

// consume folds orchestrator events into hist. A panic raised by the
// orchestrator is returned as err; one raised by the consumer propagates.
func (c *Controller) consume(seq iter.Seq[orchestrator.Event], hist completion.History, status *string, yield func(Update) bool) (stopped bool, err error) {
	pending := &hist[len(hist)-1]
	inYield := false
	defer func() {
		if r := recover(); r != nil {
			if inYield {
				panic(r)
			}
			err = fmt.Errorf("%v", r)
		}
	}()

	for ev := range seq {
		switch ev.Kind {
		case orchestrator.EventStatus:
			*status = StatusPrefix + ev.Text
		case orchestrator.EventContent:
			pending.Assistant = ev.Text
		default:
			c.log.Warn("unexpected event kind", zap.Stringer("kind", ev.Kind))
		}
		inYield = true
		ok := yield(snapshot(hist, *status))
		inYield = false
		if !ok {
			return true, nil
		}
	}
	return false, nil
}

func snapshot(hist completion.History, status string) Update {
	return Update{History: hist.Clone(), Status: status}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > regenPreviewMaxRunes {
		r = r[:regenPreviewMaxRunes]
	}
	return string(r)
}
