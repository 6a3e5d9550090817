package cmd

import (
	"os"

	"github.com/itsmostafa/inkbridge/internal/clock"
	"github.com/itsmostafa/inkbridge/internal/config"
	"github.com/itsmostafa/inkbridge/internal/launcher"
	"github.com/itsmostafa/inkbridge/internal/logging"
	"github.com/itsmostafa/inkbridge/internal/process"
	"github.com/itsmostafa/inkbridge/internal/rendezvous"
	"github.com/spf13/cobra"
)

var clientCmd = &cobra.Command{
	Use:   "client [inkscape args...]",
	Short: "Extension entry point run by Inkscape",
	Long: `Wait for the shell to connect, send it the arguments Inkscape passed, and
write the document the shell returns to stdout.

Arguments are forwarded untouched, so this command takes no flags. If the
shell does not connect within INKBRIDGE_ACCEPT_TIMEOUT the process exits
immediately with status 1.`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.NewOrNop(logging.Config{
			Level:       cfg.LogLevel,
			Development: cfg.LogDevelopment,
			File:        cfg.LogFile,
		})
		defer logger.Sync()

		l := &launcher.Launcher{
			Address:       rendezvous.UnixAddress(cfg.Socket),
			AcceptTimeout: cfg.AcceptTimeout,
			Clock:         clock.Real(),
			Stdout:        cmd.OutOrStdout(),
			Stderr:        cmd.ErrOrStderr(),
			Abort:         process.Abort,
			Logger:        logger.Named("client"),
		}
		argv := append([]string{os.Args[0]}, args...)
		return l.Run(argv)
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
}
