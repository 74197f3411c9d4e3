// Package cli implements the Nexus Pulse command-line interface using Cobra.
// Each subcommand maps to one engine capability (serve, insights, refresh,
// history, config).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Nexus Pulse: behavioural insights for your quest log",
	Long: `Nexus Pulse watches a player's quests, habits, energy, vocabulary,
focus and goals, and turns them into ranked insights. An optional AI
synthesis adds a daily narrative on top, rate-limited and cached.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
