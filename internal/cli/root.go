// Package cli implements the limitedwatch command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"limitedwatch/internal/config"
)

var cfgPath string

// RootCmd is the top-level command. Without a subcommand it behaves
// like run.
var RootCmd = &cobra.Command{
	Use:           "limitedwatch",
	Short:         "Relay underpriced Roblox limiteds from Rolimons to Telegram",
	Args:          cobra.NoArgs,
	RunE:          runRun,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.json", "path to config (json or yaml)")
}

// configManager returns a manager for --config. The default path may be
// absent (BOT_TOKEN alone is enough); an explicit path must exist.
func configManager(cmd *cobra.Command) *config.ConfigManager {
	m := config.NewConfigManager(cfgPath)
	m.SetOptional(!cmd.Flags().Changed("config"))
	return m
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
