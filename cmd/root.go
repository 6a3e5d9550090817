package cmd

import (
	"context"
	"fmt"

	"github.com/itsmostafa/inkbridge/internal/process"
	"github.com/itsmostafa/inkbridge/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "inkbridge",
	Short: "Script a running Inkscape from an interactive shell",
	Long: `inkbridge lets an interactive JavaScript shell borrow the document open in
Inkscape, one command at a time.

Inkscape runs "inkbridge client" as an extension. The client waits for the
shell to connect, hands over the document, and prints whatever the shell
sends back so Inkscape can apply it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("inkbridge %s\n", version.String()))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		process.Fatal(err)
	}
}
