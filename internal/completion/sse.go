package completion

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strings"
)

// doneSentinel is the payload the service sends to end a stream.
const doneSentinel = "[DONE]"

// maxFrameSize bounds a single SSE line.
const maxFrameSize = 1 << 20

// readFrames parses Server-Sent Events from body and yields the data payload
// of each event. A read failure is yielded once as an error and ends the
// sequence.
//
// SSE format rules applied:
//   - Lines prefixed with "data: " (or "data:") carry the payload.
//   - Lines starting with ":" are comments and are ignored.
//   - An empty line signals the end of an event.
//   - Multiple "data:" lines within a single event are joined with newlines.
//   - Accumulated data is flushed as a final event when the body ends.
func readFrames(body io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
		var dataBuf strings.Builder

		flush := func() bool {
			if dataBuf.Len() == 0 {
				return true
			}
			payload := dataBuf.String()
			dataBuf.Reset()
			return yield(payload, nil)
		}

		for scanner.Scan() {
			line := scanner.Text()

			switch {
			case line == "":
				if !flush() {
					return
				}

			case strings.HasPrefix(line, ":"):
				// Comment line.

			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(line, "data:")
				payload = strings.TrimPrefix(payload, " ")
				if dataBuf.Len() > 0 {
					dataBuf.WriteByte('\n')
				}
				dataBuf.WriteString(payload)

			default:
				// Unknown field (event:, id:, retry:).
			}
		}

		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("read stream: %w", err))
			return
		}
		flush()
	}
}
