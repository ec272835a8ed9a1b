// Package cmd provides the arealbot CLI.
//
// Commands:
//   - serve: HTTP API server for channel adapters
//   - ask: one-shot conversation turn from the terminal
//   - ingest: load documents into the knowledge base
//   - migrate: run database migrations and exit
//   - version: show version information
//
// All long-running commands handle SIGINT/SIGTERM via context cancellation.
package cmd

import (
	"github.com/spf13/cobra"
)

// configPath is set by the persistent --config flag. Empty means the
// default lookup (~/.arealbot/config.yaml, then env and defaults).
var configPath string

var rootCmd = &cobra.Command{
	Use:   "arealbot",
	Short: "Role-aware conversational agent for Areal",
	Long: `Arealbot answers customer and employee questions from a role-filtered
knowledge base and can look up customers or create leads in the CRM.

Run 'arealbot serve' to start the HTTP API, or 'arealbot ask' for a
one-shot turn from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config file (default ~/.arealbot/config.yaml)")
}
