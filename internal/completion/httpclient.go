package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Compile-time interface check.
var _ Completer = (*HTTPClient)(nil)

// DefaultTimeout is generous on purpose: local models can take hours on a
// large synthesis prompt and there is no caller-initiated abort.
const DefaultTimeout = 36000 * time.Second

// payloadPreview is how much of a request body is logged.
const payloadPreview = 200

// HTTPClient implements Completer against an OpenAI-compatible
// /v1/chat/completions endpoint.
type HTTPClient struct {
	http     *http.Client
	endpoint string
	model    string
	apiKey   string
	log      *zap.Logger
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// WithAPIKey sets the bearer credential. An empty key sends no
// Authorization header.
func WithAPIKey(key string) ClientOption {
	return func(c *HTTPClient) {
		c.apiKey = key
	}
}

// WithLogger sets the logger used for request tracing and stream warnings.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.log = l
		}
	}
}

// NewHTTPClient creates a client for the given endpoint and model.
func NewHTTPClient(endpoint, model string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http:     &http.Client{Timeout: DefaultTimeout},
		endpoint: endpoint,
		model:    model,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured endpoint URL.
func (c *HTTPClient) Endpoint() string { return c.endpoint }

// Model returns the configured model identifier.
func (c *HTTPClient) Model() string { return c.model }

// chatRequest is the wire shape of a completion request.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
	TopP        *float64  `json:"top_p,omitempty"`
	TopK        *int      `json:"top_k,omitempty"`
}

// chatResponse is the non-streaming response envelope.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatChunk is one streamed frame.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete sends a non-streaming request and returns the trimmed answer.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(fmt.Errorf("read response: %w", err))
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.log.Error("decode completion response",
			zap.Error(err), zap.String("body", truncate(string(body), payloadPreview)))
		return "", &Error{Kind: KindDecode, Err: err}
	}
	c.log.Debug("received completion response", zap.Int("bytes", len(body)))

	if len(decoded.Choices) == 0 {
		return "", &Error{Kind: KindProtocol, Err: ErrMissingChoices}
	}
	content := decoded.Choices[0].Message.Content
	if content == nil || *content == "" {
		return "", &Error{Kind: KindProtocol, Err: ErrMissingContent}
	}
	return strings.TrimSpace(*content), nil
}

// Stream sends a streaming request and yields content fragments. Frames that
// fail to decode are skipped with a warning.
func (c *HTTPClient) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := c.post(ctx, req, true)
		if err != nil {
			yield("", err)
			return
		}
		defer resp.Body.Close()

		for payload, err := range readFrames(resp.Body) {
			if err != nil {
				yield("", classify(err))
				return
			}
			payload = strings.TrimSpace(payload)
			if payload == doneSentinel {
				c.log.Debug("stream finished")
				return
			}

			fragments, done, err := decodeFrame(payload)
			if err != nil {
				c.log.Warn("could not decode stream frame",
					zap.Error(err), zap.String("frame", truncate(payload, payloadPreview)))
			}
			for _, f := range fragments {
				if !yield(f, nil) {
					return
				}
			}
			if done {
				c.log.Debug("stream finished")
				return
			}
		}
	}
}

// decodeFrame returns the content fragments of one event payload. When the
// payload is not a single JSON chunk, each of its data lines is decoded on
// its own, and a [DONE] line ends the stream.
func decodeFrame(payload string) (fragments []string, done bool, err error) {
	var chunk chatChunk
	if err = json.Unmarshal([]byte(payload), &chunk); err == nil {
		return chunk.fragments(), false, nil
	}
	if !strings.Contains(payload, "\n") {
		return nil, false, err
	}

	err = nil
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case line == doneSentinel:
			return fragments, true, err
		default:
			var c chatChunk
			if lerr := json.Unmarshal([]byte(line), &c); lerr != nil {
				err = lerr
				continue
			}
			fragments = append(fragments, c.fragments()...)
		}
	}
	return fragments, false, err
}

func (c chatChunk) fragments() []string {
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == "" {
		return nil
	}
	return []string{c.Choices[0].Delta.Content}
}

// post builds and executes the HTTP request. Non-2xx statuses are returned
// as transport errors with the body attached.
func (c *HTTPClient) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	payload := chatRequest{
		Model:       c.model,
		Messages:    req.Messages(),
		Temperature: req.Sampling.Temperature,
		Stream:      stream,
	}
	if req.Sampling.TopPEnabled() {
		topP := req.Sampling.TopP
		payload.TopP = &topP
	}
	if req.Sampling.TopKEnabled() {
		topK := req.Sampling.TopK
		payload.TopK = &topK
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debug("sending completion request",
		zap.String("endpoint", c.endpoint),
		zap.String("model", c.model),
		zap.Bool("stream", stream),
		zap.Bool("auth", c.apiKey != ""),
		zap.String("payload", truncate(string(body), payloadPreview)),
	)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		ce := classify(err)
		c.log.Error("completion request failed", zap.Error(err), zap.Stringer("kind", ce.Kind))
		return nil, ce
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Kind: KindTransport,
			Err:  fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	return resp, nil
}

// truncate shortens s to n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
