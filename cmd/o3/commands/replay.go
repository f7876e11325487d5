package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/config"
	"github.com/o3go/o3go/pkg/dispatch"
)

func newReplayCommand() *cobra.Command {
	var (
		backend   string
		sessionID string
		fromRedis bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "replay [transcript]",
		Short: "Replay a transcript against a backend",
		Long: `Re-emit a recorded transcript, in order, through the configured backend.

The transcript comes from a file, or with --session from the session store
(or Redis with --redis). Its model declaration must match the configured
model. The replay stops at the first rejected command.`,
		Example: `  # Replay a file against the engine host
  o3 replay frame.tcl --backend engine

  # Replay a stored session against the reference engine
  o3 replay --session 6f1c0d2e-8c1b-4a57-9a0e-1f9f3f1d2b7a`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (sessionID == "") {
				return fmt.Errorf("give either a transcript file or --session")
			}

			env, err := loadEnvironment(cmd, func(cfg *config.Config) {
				if backend != "" {
					cfg.Backend.Kind = backend
				}
				cfg.Backend.Transcript = output
			})
			if err != nil {
				return err
			}
			defer func() { _ = env.shutdown() }()

			ctx := env.tel.WithContext(cmd.Context())
			source, r, err := transcriptSource(ctx, env.cfg, args, sessionID, fromRedis)
			if err != nil {
				return err
			}
			defer r.Close()

			run, err := env.openSession(ctx, source, nil)
			if err != nil {
				return err
			}
			res, replayErr := dispatch.Replay(ctx, run.session, r)
			if err := run.finish(ctx, replayErr); err != nil {
				env.logger.Warn().Err(err).Msg("failed to close session")
			}
			if replayErr != nil {
				return replayErr
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(w, res)
			}
			fmt.Fprintf(w, "Session: %s\n", run.session.ID())
			fmt.Fprintf(w, "Emitted: %d, skipped: %d\n", res.Emitted, res.Skipped)
			lines := make([]int, 0, len(res.Failed))
			for line := range res.Failed {
				lines = append(lines, line)
			}
			sort.Ints(lines)
			for _, line := range lines {
				st := res.Failed[line]
				fmt.Fprintf(w, "  line %d: engine returned %d %s\n", line, st.Code, st.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "", "backend kind (reference, engine, record)")
	cmd.Flags().StringVar(&sessionID, "session", "", "replay a stored session")
	cmd.Flags().BoolVar(&fromRedis, "redis", false, "read the stored session from Redis")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the accepted commands to this transcript")

	return cmd
}

// transcriptSource opens the transcript to replay.
func transcriptSource(ctx context.Context, cfg *config.Config, args []string, sessionID string, fromRedis bool) (string, io.ReadCloser, error) {
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return "", nil, fmt.Errorf("failed to open transcript: %w", err)
		}
		return args[0], f, nil
	}

	lines, err := storedLines(ctx, cfg, sessionID, fromRedis)
	if err != nil {
		return "", nil, err
	}
	return "session:" + sessionID, io.NopCloser(strings.NewReader(strings.Join(lines, "\n"))), nil
}
