package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "splitkit",
	Short: "splitkit - A self-hosted A/B testing engine",
	Long: `splitkit is a self-hosted experimentation engine.
Single Go binary, embedded SQLite, no external dependencies.

Running without a subcommand starts the server (same as 'splitkit serve').`,
	RunE: runServe, // Default action is to start server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SPLITKIT_CONFIG"), "config file path")
}
