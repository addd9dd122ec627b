package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/lexgen/cmd/lexgen/commands"
	"github.com/teranos/lexgen/config"
	"github.com/teranos/lexgen/logger"

	// Language backends register themselves on import.
	_ "github.com/teranos/lexgen/typegen/python"
	_ "github.com/teranos/lexgen/typegen/typescript"
)

var rootCmd = &cobra.Command{
	Use:   "lexgen",
	Short: "lexgen - typed data models from atproto lexicon schemas",
	Long: `lexgen compiles atproto lexicon schema documents into typed data
models, resolving cross-document references (including cycles) and
emitting deterministic, content-addressed output.

Available commands:
  generate - Generate typed models from a lexicon directory
  hash     - Print the content digest of a lexicon directory
  version  - Show version information

Examples:
  lexgen generate ./lexicons -o ./models          # Generate pydantic models
  lexgen generate ./lexicons --prefix app.bsky    # Only app.bsky.* documents
  lexgen generate ./lexicons --target typescript  # TypeScript interfaces
  lexgen hash ./lexicons                          # Print cache digest`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs || cfg.Log.JSON, verbose || cfg.Log.Verbose); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.HashCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
