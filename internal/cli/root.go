package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/saeedalam/stackforge/internal/apperr"
)

var (
	configPath     string
	requestTimeout time.Duration
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "stackforge",
	Short: "Generate and enhance project scaffolds with an LLM",
	Long: `stackforge - AI project scaffolding from the terminal

stackforge asks a hosted LLM (Google Gemini or OpenRouter) to generate a
complete multi-file project for a stack, or to improve an existing project,
and keeps every result in a local history you can export as a zip archive.

Quick Start:
  stackforge settings set --google-key <key>   Store your API key
  stackforge generate "Todo App" --stack react  Generate a project
  stackforge history list                       Show previous results
  stackforge export <id>                        Download a result as zip
  stackforge serve                              Start the local API for the web UI`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apperr.UserMessage(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $HOME/.stackforge/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 0, "Abort provider requests after this duration (0 uses providers.timeout)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(enhanceCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(stacksCmd)
	rootCmd.AddCommand(serveCmd)
	// versionCmd is registered in version.go
}
