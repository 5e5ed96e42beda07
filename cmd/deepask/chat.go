package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat. Status lines are printed as the run progresses and
the answer streams in as it is generated. Type /help for the commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.log.Sync()
		a.announce(ctx)

		r := &repl{
			controller: a.controller(nil),
			in:         cmd.InOrStdin(),
			out:        cmd.OutOrStdout(),
			status:     cmd.ErrOrStderr(),
			level:      a.cfg.Level(),
			sampling:   a.cfg.Sampling(),
		}
		return r.run(ctx)
	},
}
