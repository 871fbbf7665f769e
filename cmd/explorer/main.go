// Package main is the entry point for the explorer CLI: search PubMed in any
// language, explain articles in plain language, and inspect LLM providers.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixir/pubmed-explorer/internal/app"
	"github.com/helixir/pubmed-explorer/internal/config"
	"github.com/helixir/pubmed-explorer/internal/events"
	"github.com/helixir/pubmed-explorer/internal/observability"
)

// version is set at build time via ldflags.
var version = "dev"

var verbose bool

// rootCmd is the base command for the explorer CLI.
var rootCmd = &cobra.Command{
	Use:     "explorer",
	Short:   "Search PubMed in any language and explain articles in plain words",
	Version: version,
	Long: `explorer translates a medical query into English, searches PubMed, and
translates result titles into Russian. Articles can be explained for a
non-specialist reader.

Configuration comes from config.yaml and PUBMEDAI_* environment variables,
the same as the server. API keys are read from the environment only.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline details to stderr")

	rootCmd.AddCommand(searchCmd, explainCmd, optimizeCmd, providersCmd)
}

// buildApp loads configuration and wires the components for one command.
// Metrics are never exported from the CLI, and events stay in memory.
func buildApp(publisher *events.MemoryPublisher) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Metrics.Enabled = false

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := observability.NewLoggerWithWriter(observability.LoggingConfig{
		Level:  level,
		Format: "console",
	}, os.Stderr)

	return app.Build(cfg, logger, app.WithPublisher(publisher))
}

// run executes the command tree and reports a failure once on stderr.
func run(stderr io.Writer) int {
	if err := rootCmd.Execute(); err != nil {
		printError(stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Stderr))
}
