package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/mcptools"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as a Model Context Protocol server",
	Long: `Run as a Model Context Protocol server exposing the ask and parse_subtasks
tools. Speaks stdio by default; --http serves streamable HTTP instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.log.Sync()

		svc := mcptools.NewAskService(a.client, mcptools.Defaults{
			Level:       a.cfg.Level(),
			Sampling:    a.cfg.Sampling(),
			Parallelism: a.cfg.Engine.Parallelism,
		}, a.log)
		srv := mcptools.NewServer(svc)

		if mcpHTTPAddr != "" {
			a.log.Info("serving MCP over HTTP", zap.String("addr", mcpHTTPAddr))
			return mcptools.RunHTTP(ctx, srv, mcpHTTPAddr)
		}
		return mcptools.RunStdio(ctx, srv)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
}
