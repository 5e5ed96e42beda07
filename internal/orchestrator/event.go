package orchestrator

// EventKind tags an Event.
type EventKind int

const (
	// EventStatus carries a progress message.
	EventStatus EventKind = iota

	// EventContent carries the full response produced so far. Consumers
	// replace the displayed text with it; it is never a delta.
	EventContent
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventContent:
		return "content"
	default:
		return "unknown"
	}
}

// Event is one item of an orchestrator's output sequence. The end of the
// sequence is the completion signal.
type Event struct {
	Kind EventKind
	Text string
}

// Status returns a status event.
func Status(text string) Event {
	return Event{Kind: EventStatus, Text: text}
}

// Content returns a cumulative content event.
func Content(text string) Event {
	return Event{Kind: EventContent, Text: text}
}
