// Package completion talks to a remote chat-completion service. It flattens a
// conversation history into role-tagged messages and returns either a single
// answer or a lazy sequence of streamed fragments.
package completion

import (
	"context"
	"fmt"
	"iter"
)

// Completer is the contract every completion backend implements.
type Completer interface {
	// Complete sends the request and returns the full answer text.
	Complete(ctx context.Context, req Request) (string, error)

	// Stream sends the request and yields content fragments as they arrive.
	// The sequence is finite and cannot be restarted. A transport failure is
	// yielded once as a non-nil error, after which the sequence ends.
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry of a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is one exchange of a conversation.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// History is an ordered list of turns, oldest first.
type History []Turn

// Clone returns a copy of h that shares no storage with it.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Sampling holds the user's sampling parameters.
type Sampling struct {
	Temperature float64 `json:"temperature"`

	// TopP is forwarded only when strictly below 1.0.
	TopP float64 `json:"topP"`

	// TopK is forwarded only when strictly above 0.
	TopK int `json:"topK"`
}

// MinControlTemperature is the floor applied to the control temperature.
const MinControlTemperature = 0.1

// MaxTemperature is the largest accepted user temperature.
const MaxTemperature = 2.0

// Validate checks that s is within the accepted ranges: temperature in
// [0, 2], top-p in [0, 1] and a non-negative top-k.
func (s Sampling) Validate() error {
	switch {
	case s.Temperature < 0 || s.Temperature > MaxTemperature:
		return fmt.Errorf("temperature %v is outside [0, %v]", s.Temperature, MaxTemperature)
	case s.TopP < 0 || s.TopP > 1:
		return fmt.Errorf("topP %v is outside [0, 1]", s.TopP)
	case s.TopK < 0:
		return fmt.Errorf("topK %d is negative", s.TopK)
	}
	return nil
}

// Control returns a copy of s with the temperature used for structural calls
// (decomposition and synthesis): half the user temperature, never below 0.1.
func (s Sampling) Control() Sampling {
	c := s
	c.Temperature = max(MinControlTemperature, s.Temperature*0.5)
	return c
}

// TopPEnabled reports whether TopP should be sent to the service.
func (s Sampling) TopPEnabled() bool { return s.TopP < 1.0 }

// TopKEnabled reports whether TopK should be sent to the service.
func (s Sampling) TopKEnabled() bool { return s.TopK > 0 }

// Request is a single completion call.
type Request struct {
	// Prompt is appended as the final user message.
	Prompt string

	// History is optional prior conversation context.
	History History

	Sampling Sampling
}

// Messages flattens the request into the message list sent to the service.
// Turns contribute their non-empty sides only, so a pending turn with no
// assistant text adds just its user message.
func (r Request) Messages() []Message {
	msgs := make([]Message, 0, 2*len(r.History)+1)
	for _, t := range r.History {
		if t.User != "" {
			msgs = append(msgs, Message{Role: RoleUser, Content: t.User})
		}
		if t.Assistant != "" {
			msgs = append(msgs, Message{Role: RoleAssistant, Content: t.Assistant})
		}
	}
	return append(msgs, Message{Role: RoleUser, Content: r.Prompt})
}
