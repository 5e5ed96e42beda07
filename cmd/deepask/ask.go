package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/completion"
	"github.com/dusk-indust/deepask/internal/export"
	"github.com/dusk-indust/deepask/internal/orchestrator"
)

var (
	askLevel       string
	askTemperature float64
	askTopP        float64
	askTopK        int
	askTrace       string
	askQuiet       bool
)

var askCmd = &cobra.Command{
	Use:   "ask <task>",
	Short: "Answer a single task and exit",
	Example: `  deepask ask "What is 2+2?"
  deepask ask --level high --trace plan.mmd "Plan a product launch"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.log.Sync()
		a.announce(ctx)

		level := a.cfg.Level()
		if cmd.Flags().Changed("level") {
			if level, err = orchestrator.ParseLevel(askLevel); err != nil {
				return err
			}
		}
		sampling, err := resolveSampling(cmd, a.cfg.Sampling())
		if err != nil {
			return err
		}

		var trace orchestrator.Trace
		controller := a.controller(func(tr orchestrator.Trace) { trace = tr })

		status := cmd.ErrOrStderr()
		if askQuiet {
			status = io.Discard
		}
		r := &repl{controller: controller, out: cmd.OutOrStdout(), status: status}
		r.consume(controller.Submit(ctx, strings.Join(args, " "), nil, level, sampling))

		if askTrace != "" {
			if err := export.WriteFile(askTrace, trace); err != nil {
				return err
			}
			a.log.Info("trace written", zap.String("path", askTrace))
		}
		if ctx.Err() != nil {
			return fmt.Errorf("interrupted: %w", ctx.Err())
		}
		return nil
	},
}

func init() {
	addAskFlags(askCmd)
}

func addAskFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&askLevel, "level", "l", "low", "compute level: low, medium or high")
	cmd.Flags().Float64VarP(&askTemperature, "temperature", "t", 0.7, "sampling temperature")
	cmd.Flags().Float64Var(&askTopP, "top-p", 1.0, "nucleus sampling (1 disables it)")
	cmd.Flags().IntVar(&askTopK, "top-k", 0, "top-k sampling (0 disables it)")
	cmd.Flags().StringVar(&askTrace, "trace", "", "write the decomposition trace to this file (.json, .yaml, .yml, .mmd)")
	cmd.Flags().BoolVarP(&askQuiet, "quiet", "q", false, "do not print status lines")
}

// resolveSampling applies the sampling flags set on cmd over base.
func resolveSampling(cmd *cobra.Command, base completion.Sampling) (completion.Sampling, error) {
	s := base
	if cmd.Flags().Changed("temperature") {
		s.Temperature = askTemperature
	}
	if cmd.Flags().Changed("top-p") {
		s.TopP = askTopP
	}
	if cmd.Flags().Changed("top-k") {
		s.TopK = askTopK
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid sampling flags: %w", err)
	}
	return s, nil
}
