package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/orchestrator"
	"github.com/dusk-indust/deepask/internal/session"
)

const replHelp = `Commands:
  /level low|medium|high   set the compute level
  /temp <0-2>              set the temperature
  /topp <0-1>              set top-p (1 disables it)
  /topk <n>                set top-k (0 disables it)
  /regen                   regenerate the last answer
  /clear                   forget the conversation
  /settings                show the current settings
  /quit                    leave`

var (
	statusColor = color.New(color.FgCyan)
	errorColor  = color.New(color.FgRed)
)

// repl is an interactive chat over a session controller.
type repl struct {
	controller *session.Controller
	in         io.Reader
	out        io.Writer
	status     io.Writer

	history  completion.History
	level    orchestrator.Level
	sampling completion.Sampling
}

func (r *repl) run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := r.command(ctx, line)
			if err != nil {
				errorColor.Fprintln(r.status, err)
			}
			if quit {
				return nil
			}
			continue
		}
		r.consume(r.controller.Submit(ctx, line, r.history, r.level, r.sampling))
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// command runs one slash command and reports whether the REPL should end.
func (r *repl) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, replHelp)
	case "/settings":
		fmt.Fprintf(r.out, "level=%s temperature=%g topP=%g topK=%d turns=%d\n",
			r.level, r.sampling.Temperature, r.sampling.TopP, r.sampling.TopK, len(r.history))
	case "/level":
		l, err := orchestrator.ParseLevel(arg)
		if err != nil {
			return false, err
		}
		r.level = l
	case "/temp", "/topp", "/topk":
		s, err := r.adjust(name, arg)
		if err != nil {
			return false, err
		}
		r.sampling = s
	case "/regen":
		r.consume(r.controller.Regenerate(ctx, r.history, r.level, r.sampling))
	case "/clear":
		r.history = nil
		statusColor.Fprintln(r.status, "conversation cleared")
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// consume prints a run as it streams and keeps its final history.
func (r *repl) consume(seq iter.Seq[session.Update]) {
	p := &printer{out: r.out}
	var (
		last   session.Update
		status string
		n      int
	)
	for u := range seq {
		if u.Status != "" && u.Status != status {
			p.breakLine()
			statusColor.Fprintln(r.status, u.Status)
		}
		status = u.Status
		// The first update only shows the pending turn.
		if n > 0 && len(u.History) > 0 {
			p.content(u.History[len(u.History)-1].Assistant)
		}
		last = u
		n++
	}
	p.breakLine()
	if n > 0 {
		r.history = last.History
	}
}

// printer writes cumulative content to a terminal, printing only the new
// suffix when the text grew.
type printer struct {
	out   io.Writer
	shown string
	open  bool
}

func (p *printer) content(text string) {
	if text == p.shown {
		return
	}
	if strings.HasPrefix(text, p.shown) {
		fmt.Fprint(p.out, text[len(p.shown):])
	} else {
		p.breakLine()
		fmt.Fprint(p.out, text)
	}
	p.shown = text
	p.open = text != ""
}

// breakLine ends a partially printed line.
func (p *printer) breakLine() {
	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
	}
}

// adjust returns the sampling with one parameter changed by a slash command.
func (r *repl) adjust(name, arg string) (completion.Sampling, error) {
	s := r.sampling
	switch name {
	case "/temp", "/topp":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return s, fmt.Errorf("%s: %q is not a number", name, arg)
		}
		if name == "/temp" {
			s.Temperature = v
		} else {
			s.TopP = v
		}
	case "/topk":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return s, fmt.Errorf("%s: %q is not an integer", name, arg)
		}
		s.TopK = v
	}
	return s, s.Validate()
}
