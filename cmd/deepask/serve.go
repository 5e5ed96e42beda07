package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dusk-indust/deepask/internal/config"
	"github.com/dusk-indust/deepask/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over HTTP with streamed (SSE) answers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.log.Sync()
		a.announce(ctx)

		addr := a.cfg.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		srv := server.New(
			a.controller(nil),
			server.NewStore(a.cfg.Server.ConversationTTL),
			server.Defaults{Level: a.cfg.Level(), Sampling: a.cfg.Sampling()},
			a.log,
		)
		bound, err := srv.Start(ctx, addr)
		if err != nil {
			return err
		}
		a.log.Info("serving", zap.String("addr", bound))

		<-ctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, "+config.DefaultAddr+")")
}
