package completion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Settings selects and configures a completion backend.
type Settings struct {
	Provider  string
	Endpoint  string
	Model     string
	APIKey    string
	Timeout   time.Duration
	MaxTokens int

	// BaseURL overrides the Anthropic API base URL.
	BaseURL string

	UseBedrock bool
	AWSRegion  string
	AWSProfile string
}

// New builds the Completer named by s.Provider. An empty provider means the
// OpenAI-compatible HTTP client.
func New(ctx context.Context, s Settings, log *zap.Logger) (Completer, error) {
	switch s.Provider {
	case "", ProviderOpenAI:
		if s.Endpoint == "" {
			return nil, fmt.Errorf("completion: endpoint is required")
		}
		opts := []ClientOption{WithAPIKey(s.APIKey), WithLogger(log)}
		if s.Timeout > 0 {
			opts = append(opts, WithTimeout(s.Timeout))
		}
		return NewHTTPClient(s.Endpoint, s.Model, opts...), nil
	case ProviderAnthropic:
		return NewAnthropicClient(ctx, AnthropicConfig{
			Model:      s.Model,
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			MaxTokens:  s.MaxTokens,
			UseBedrock: s.UseBedrock,
			AWSRegion:  s.AWSRegion,
			AWSProfile: s.AWSProfile,
		}, log)
	default:
		return nil, fmt.Errorf("completion: unsupported provider %q", s.Provider)
	}
}
