package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/config"
	"github.com/dusk-indust/deepask/internal/logging"
	"github.com/dusk-indust/deepask/internal/orchestrator"
	"github.com/dusk-indust/deepask/internal/session"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "deepask",
	Short: "Answer tasks with selectable decomposition depth",
	Long: `deepask sends tasks to a chat-completion service and lets you choose how much
work happens before the answer:

  low     answer directly
  medium  break the task into subtasks, solve each, then synthesize
  high    break the task into stages and every stage into steps, solve the
          steps, synthesize per stage and then across stages

Any OpenAI-compatible endpoint works (set LLM_API_ENDPOINT, LLM_MODEL and
optionally LLM_API_KEY), as does the Anthropic API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a deepask.yaml config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	client completion.Completer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	log, err := logging.New(logging.Options{Level: level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}

	client, err := completion.New(ctx, cfg.CompletionSettings(), log)
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}
	return &app{cfg: cfg, log: log, client: client}, nil
}

// announce logs the backend in use and checks that its host answers.
func (a *app) announce(ctx context.Context) {
	a.log.Info("using completion backend",
		zap.String("provider", a.cfg.LLM.Provider),
		zap.String("endpoint", a.cfg.LLM.Endpoint),
		zap.String("model", a.cfg.LLM.Model),
		zap.Bool("api_key", a.cfg.LLM.APIKey != ""))

	if p := a.cfg.LLM.Provider; p != "" && p != completion.ProviderOpenAI {
		return
	}
	base := a.cfg.BaseURL()
	code, err := completion.Probe(ctx, nil, base, completion.DefaultProbeTimeout)
	if err != nil {
		a.log.Warn("could not reach endpoint base URL", zap.String("url", base), zap.Error(err))
		return
	}
	a.log.Info("endpoint base URL is reachable", zap.String("url", base), zap.Int("status", code))
}

// engine builds an orchestrator engine. observer may be nil.
func (a *app) engine(observer func(orchestrator.Trace)) *orchestrator.Engine {
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.log),
		orchestrator.WithParallelism(a.cfg.Engine.Parallelism),
	}
	if observer != nil {
		opts = append(opts, orchestrator.WithObserver(observer))
	}
	return orchestrator.NewEngine(a.client, opts...)
}

func (a *app) controller(observer func(orchestrator.Trace)) *session.Controller {
	return session.NewController(a.engine(observer), a.log)
}
