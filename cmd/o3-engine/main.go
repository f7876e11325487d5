// Package main implements o3-engine, the reference engine served over the
// JSON-lines protocol on stdin and stdout. Logs go to stderr.
//
// The binary is small and self-contained so it can be uploaded to a remote
// host next to the real engine; with --self-delete it removes itself on exit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/catalog"
	"github.com/o3go/o3go/pkg/engine"
	"github.com/o3go/o3go/pkg/enginehost"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		strict     bool
		ttl        time.Duration
		selfDelete bool
		logLevel   string
		exitCode   int
	)

	cmd := &cobra.Command{
		Use:           "o3-engine",
		Short:         "Serve the reference engine over stdio",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("component", "o3-engine").Logger()

			execPath := ""
			if selfDelete {
				if execPath, err = os.Executable(); err != nil {
					return fmt.Errorf("failed to get executable path: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			host := enginehost.New(os.Stdin, os.Stdout,
				enginehost.WithName("o3-reference"),
				enginehost.WithTTL(ttl),
				enginehost.WithMetadata("version", version),
				enginehost.WithMetadata("strict", fmt.Sprint(strict)),
				enginehost.WithLogger(logger),
			)
			eng := engine.New(
				engine.WithSchemas(catalog.Default()),
				engine.WithStrict(strict),
				engine.WithOutput(host.Output),
				engine.WithLogger(logger),
			)
			exitCode = host.Serve(ctx, eng)

			if execPath != "" {
				if err := os.Remove(execPath); err != nil {
					logger.Warn().Err(err).Str("path", execPath).Msg("failed to delete executable")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "reject commands without a catalog schema")
	cmd.Flags().DurationVar(&ttl, "ttl", 10*time.Minute, "stop after this long; 0 disables")
	cmd.Flags().BoolVar(&selfDelete, "self-delete", false, "remove the executable on exit")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exitCode
}
