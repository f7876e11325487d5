package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "o3",
		Short: "o3 - typed model building for finite element engines",
		Long: `o3 builds finite element models through a typed command layer.

Model scripts are written in Starlark. Every command is checked against the
catalog before it reaches a backend:
  - the in-process reference engine (dry run)
  - an engine host started locally, over SSH or as a WASI module
  - a transcript recorder

Sessions can be recorded to SQLite, Redis and plain transcript files, guarded
by rego policies and instrumented with Prometheus and OpenTelemetry.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (.yaml or .cue)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRecordCommand())
	rootCmd.AddCommand(newReplayCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newSessionsCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newPolicyCommand())

	return rootCmd
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
