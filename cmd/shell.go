package cmd

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/itsmostafa/inkbridge/internal/config"
	"github.com/itsmostafa/inkbridge/internal/document"
	"github.com/itsmostafa/inkbridge/internal/inkscape"
	"github.com/itsmostafa/inkbridge/internal/logging"
	"github.com/itsmostafa/inkbridge/internal/rendezvous"
	"github.com/itsmostafa/inkbridge/internal/session"
	"github.com/itsmostafa/inkbridge/internal/shell"
	"github.com/itsmostafa/inkbridge/internal/version"
	"github.com/itsmostafa/inkbridge/internal/window"
	"github.com/spf13/cobra"
)

var standalone bool
var socketPath string
var logLevel string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	Long: `Start a JavaScript shell that borrows the Inkscape document around every
command.

Open the inkbridge extension dialog in Inkscape first. Before each command
the shell presses its Apply button, receives the document, and binds
svg_root, guides, user_args, canvas, metadata and the unit constants mm,
cm, pt, px and inch. After the command the document goes back to Inkscape.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if socketPath != "" {
			cfg.Socket = socketPath
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		logger, err := logging.New(logging.Config{
			Level:       cfg.LogLevel,
			Development: cfg.LogDevelopment,
			File:        cfg.LogFile,
		})
		if err != nil {
			return err
		}
		defer logger.Sync()

		return runShell(cmd.Context(), cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runShell(ctx context.Context, cfg *config.Config, logger *zap.Logger, in io.Reader, out io.Writer) error {
	xdo := &window.Xdotool{
		ExtensionTitle: cfg.ExtensionWindow,
		MainTitle:      cfg.MainWindow,
		ActivationKeys: cfg.ActivationKeys,
	}
	ctrl := session.NewController(session.Options{
		Activator:      xdo,
		Loader:         document.NewEngine(),
		Address:        rendezvous.UnixAddress(cfg.Socket),
		ConnectTimeout: cfg.ConnectTimeout,
		SettleDelay:    cfg.SettleDelay,
		Logger:         logger.Named("session"),
	})

	eval, err := shell.NewEvaluator(out)
	if err != nil {
		return err
	}
	hooks := &shell.Hooks{}
	front := shell.NewFrontend(shell.FrontendOptions{
		Controller: ctrl,
		Evaluator:  eval,
		Keys:       xdo,
		Actions: &inkscape.Runner{
			Pauser: ctrl,
			Logger: logger.Named("inkscape"),
		},
		Connect: !standalone,
		Logger:  logger.Named("shell"),
	})
	if err := front.Register(hooks); err != nil {
		return err
	}

	shell.FormatBanner(out, shell.Banner{
		Version: version.Version,
		Socket:  cfg.Socket,
		Connect: front.Connect(),
	})
	sh := &shell.Shell{
		In:        in,
		Out:       out,
		Eval:      eval,
		Hooks:     hooks,
		Interrupt: true,
	}
	return sh.Run(ctx)
}

func init() {
	shellCmd.Flags().BoolVar(&standalone, "standalone", false, "Start without connecting to Inkscape (enable later with set_connect_to_client(true))")
	shellCmd.Flags().StringVar(&socketPath, "socket", "", "Rendezvous socket path (overrides INKBRIDGE_SOCKET)")
	shellCmd.Flags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error (overrides INKBRIDGE_LOG_LEVEL)")

	rootCmd.AddCommand(shellCmd)
}
