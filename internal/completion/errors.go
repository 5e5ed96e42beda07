package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a completion failure.
type ErrorKind int

const (
	// KindTimeout means the request did not finish before its deadline.
	KindTimeout ErrorKind = iota
	// KindTransport covers connection failures and non-2xx HTTP statuses.
	KindTransport
	// KindProtocol means the response decoded but lacked expected fields.
	KindProtocol
	// KindDecode means the response body was not valid JSON.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by completion backends. Its message
// is meant to be shown to the end user as-is.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Error renders a human-readable message. Network-level failures are
// prefixed "Network error:", everything else "Error:".
func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return "Network error: Request timed out."
	case KindTransport:
		return fmt.Sprintf("Network error: %v", e.Err)
	case KindDecode:
		return fmt.Sprintf("Error: Failed to read server response (%v). Check server logs.", e.Err)
	default:
		return fmt.Sprintf("Error: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsNetwork reports whether the failure happened below the protocol level.
func (e *Error) IsNetwork() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransport
}

// ErrMissingChoices and ErrMissingContent describe malformed envelopes.
var (
	ErrMissingChoices = errors.New("invalid format in LLM response (missing 'choices')")
	ErrMissingContent = errors.New("'content' not found in LLM response")
)

// classify wraps a low-level request error into an *Error.
func classify(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindTransport, Err: err}
}
