package completion

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.uber.org/zap"
)

// Compile-time interface check.
var _ Completer = (*AnthropicClient)(nil)

// DefaultMaxTokens caps the answer length for the Messages API, which
// requires an explicit limit.
const DefaultMaxTokens = 8192

// AnthropicConfig contains configuration for creating an AnthropicClient.
type AnthropicConfig struct {
	// Model is the Claude model to use.
	Model string
	// APIKey is the Anthropic API key. Ignored when UseBedrock is set.
	APIKey string
	// BaseURL overrides the API endpoint when non-empty.
	BaseURL string
	// MaxTokens limits each answer. Zero means DefaultMaxTokens.
	MaxTokens int
	// UseBedrock routes requests through AWS Bedrock.
	UseBedrock bool
	// AWSRegion is the AWS region for Bedrock.
	AWSRegion string
	// AWSProfile is the optional AWS shared config profile.
	AWSProfile string
}

// AnthropicClient implements Completer over the Anthropic Messages API.
type AnthropicClient struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	log       *zap.Logger
}

// NewAnthropicClient creates a client from cfg.
func NewAnthropicClient(ctx context.Context, cfg AnthropicConfig, log *zap.Logger) (*AnthropicClient, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var opts []option.RequestOption
	if cfg.UseBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("completion: anthropic provider requires an API key")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("completion: anthropic provider requires a model")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &AnthropicClient{
		inner:     anthropic.NewClient(opts...),
		model:     anthropic.Model(cfg.Model),
		maxTokens: int64(maxTokens),
		log:       log,
	}, nil
}

// Complete sends a non-streaming Messages request.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	msg, err := c.inner.Messages.New(ctx, c.params(req))
	if err != nil {
		return "", c.classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &Error{Kind: KindProtocol, Err: ErrMissingContent}
	}
	return text, nil
}

// Stream sends a streaming Messages request and yields text deltas.
func (c *AnthropicClient) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stream := c.inner.Messages.NewStreaming(ctx, c.params(req))
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			if !yield(text.Text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", c.classify(err))
		}
	}
}

// params converts a Request into Messages API parameters. The Messages API
// accepts temperatures in [0, 1] only.
func (c *AnthropicClient) params(req Request) anthropic.MessageNewParams {
	var msgs []anthropic.MessageParam
	for _, m := range req.Messages() {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	p := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Messages:    msgs,
		Temperature: anthropic.Float(min(req.Sampling.Temperature, 1.0)),
	}
	if req.Sampling.TopPEnabled() {
		p.TopP = anthropic.Float(req.Sampling.TopP)
	}
	if req.Sampling.TopKEnabled() {
		p.TopK = anthropic.Int(int64(req.Sampling.TopK))
	}

	c.log.Debug("sending anthropic request",
		zap.String("model", string(c.model)),
		zap.Int("messages", len(msgs)),
	)
	return p
}

// classify maps SDK errors onto the completion error taxonomy.
func (c *AnthropicClient) classify(err error) *Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		c.log.Error("anthropic request failed", zap.Int("status", apiErr.StatusCode), zap.Error(err))
		return &Error{Kind: KindTransport, Err: fmt.Errorf("HTTP %d: %w", apiErr.StatusCode, err)}
	}
	c.log.Error("anthropic request failed", zap.Error(err))
	return classify(err)
}
