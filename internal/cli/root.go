// Package cli implements the timebank command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "timebank",
	Short: "Community time-exchange marketplace core",
	Long: `timebank runs the task lifecycle and time-credit ledger for a
community time-exchange marketplace. Users post offers or requests,
accept each other's tasks, submit before/after photo evidence, and
completed exchanges move time credits between accounts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.timebank/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
