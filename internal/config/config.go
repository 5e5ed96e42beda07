// Package config loads the process configuration once at start-up. Values
// come from built-in defaults, an optional deepask.yaml, a .env file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/orchestrator"
)

// Defaults used when nothing else is configured.
const (
	DefaultEndpoint = "http://127.0.0.1:8080/v1/chat/completions"
	DefaultModel    = "local-model"
	DefaultAddr     = "127.0.0.1:7860"
)

// Config holds all configuration for deepask. It is built once by Load and
// passed by value afterwards.
type Config struct {
	LLM    LLMConfig    `mapstructure:"llm" yaml:"llm"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// LLMConfig selects and configures the completion backend.
type LLMConfig struct {
	// Provider is "openai" for any OpenAI-compatible chat endpoint or
	// "anthropic" for the Anthropic Messages API.
	Provider string        `mapstructure:"provider" yaml:"provider"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model    string        `mapstructure:"model" yaml:"model" validate:"required"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`

	MaxTokens  int    `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url"`
	UseBedrock bool   `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region" yaml:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile" yaml:"aws_profile"`
}

// EngineConfig holds orchestration defaults.
type EngineConfig struct {
	Level       string  `mapstructure:"level" yaml:"level"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	TopP        float64 `mapstructure:"top_p" yaml:"top_p" validate:"gte=0,lte=1"`
	TopK        int     `mapstructure:"top_k" yaml:"top_k" validate:"gte=0"`
	Parallelism int     `mapstructure:"parallelism" yaml:"parallelism" validate:"gte=1"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ConversationTTL time.Duration `mapstructure:"conversation_ttl" yaml:"conversation_ttl"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`

	// File enables a rotated JSON log file in addition to the console.
	File string `mapstructure:"file" yaml:"file"`
}

// Load reads the configuration. path names an explicit config file; when
// empty, deepask.yaml is looked up in the working directory and the user
// config directory, and a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("deepask")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(userConfigDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config: %w", err)
		}
	}

	v.SetEnvPrefix("DEEPASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for compatibility with existing .env files.
	v.BindEnv("llm.endpoint", "DEEPASK_LLM_ENDPOINT", "LLM_API_ENDPOINT")
	v.BindEnv("llm.model", "DEEPASK_LLM_MODEL", "LLM_MODEL")
	v.BindEnv("llm.api_key", "DEEPASK_LLM_API_KEY", "LLM_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", completion.ProviderOpenAI)
	v.SetDefault("llm.endpoint", DefaultEndpoint)
	v.SetDefault("llm.model", DefaultModel)
	v.SetDefault("llm.timeout", completion.DefaultTimeout)
	v.SetDefault("llm.max_tokens", 4096)
	// Zero values still register the keys so DEEPASK_* overrides reach them.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.use_bedrock", false)
	v.SetDefault("llm.aws_region", "")
	v.SetDefault("llm.aws_profile", "")

	v.SetDefault("engine.level", orchestrator.LevelLow.String())
	v.SetDefault("engine.temperature", 0.7)
	v.SetDefault("engine.top_p", 1.0)
	v.SetDefault("engine.top_k", 0)
	v.SetDefault("engine.parallelism", 1)

	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.conversation_ttl", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// validate checks the struct tag rules. Field names in its errors are the
// mapstructure keys, so they match the config file.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		return name
	})
	return v
}()

func rule(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	switch c.LLM.Provider {
	case completion.ProviderOpenAI:
		if c.LLM.Endpoint == "" {
			errs = append(errs, errors.New("llm.endpoint is required"))
		}
	case completion.ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if _, err := orchestrator.ParseLevel(c.Engine.Level); err != nil {
		errs = append(errs, fmt.Errorf("engine.level: %w", err))
	}
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("config: %w", err)
		}
		for _, fe := range fieldErrs {
			_, path, _ := strings.Cut(fe.Namespace(), ".")
			errs = append(errs, fmt.Errorf("%s: %v fails %s", path, fe.Value(), rule(fe)))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the configured default compute level.
func (c *Config) Level() orchestrator.Level {
	l, err := orchestrator.ParseLevel(c.Engine.Level)
	if err != nil {
		return orchestrator.LevelLow
	}
	return l
}

// Sampling returns the configured default sampling parameters.
func (c *Config) Sampling() completion.Sampling {
	return completion.Sampling{
		Temperature: c.Engine.Temperature,
		TopP:        c.Engine.TopP,
		TopK:        c.Engine.TopK,
	}
}

// CompletionSettings converts the LLM section for completion.New.
func (c *Config) CompletionSettings() completion.Settings {
	return completion.Settings{
		Provider:   c.LLM.Provider,
		Endpoint:   c.LLM.Endpoint,
		Model:      c.LLM.Model,
		APIKey:     c.LLM.APIKey,
		Timeout:    c.LLM.Timeout,
		MaxTokens:  c.LLM.MaxTokens,
		BaseURL:    c.LLM.BaseURL,
		UseBedrock: c.LLM.UseBedrock,
		AWSRegion:  c.LLM.AWSRegion,
		AWSProfile: c.LLM.AWSProfile,
	}
}

// BaseURL returns scheme and host of the completion endpoint.
func (c *Config) BaseURL() string {
	parts := strings.SplitN(c.LLM.Endpoint, "/", 4)
	if len(parts) < 3 {
		return c.LLM.Endpoint
	}
	return strings.Join(parts[:3], "/")
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "deepask")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "deepask")
}
