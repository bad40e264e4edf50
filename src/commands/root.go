package commands

import (
	"github.com/spf13/cobra"

	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/logger"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
// Configuration and logging are set up before any subcommand runs.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "brokerbridge",
		Short: "Import broker holdings into canonical equity and mutual fund records",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			logger.InitLogger(config.Cfg.LogLevel)
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newHoldingsCommand())
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}
