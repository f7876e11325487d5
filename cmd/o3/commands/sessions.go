package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/config"
	"github.com/o3go/o3go/pkg/stores"
	"github.com/o3go/o3go/pkg/transcript"
)

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
		Long: `List, show, export and delete sessions recorded in the session store.

Sessions are recorded when the backend's store option is on (--store).`,
	}

	cmd.AddCommand(newSessionsListCommand())
	cmd.AddCommand(newSessionsShowCommand())
	cmd.AddCommand(newSessionsExportCommand())
	cmd.AddCommand(newSessionsDeleteCommand())

	return cmd
}

// withStore loads the configuration and opens the session store for fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, store stores.Store) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, cfg, store)
}

func newSessionsListCommand() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, store stores.Store) error {
				sessions, err := store.ListSessions(ctx, limit, offset)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(w, sessions)
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tBACKEND\tMODEL\tSTATUS\tCOMMANDS\tCREATED\tSOURCE")
				for _, s := range sessions {
					fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%d\t%s\t%s\n",
						s.ID, s.Backend, s.Dimensions, s.DOFPerNode, s.Status, s.Commands,
						s.CreatedAt.Local().Format(time.DateTime), s.Source)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of sessions to skip")

	return cmd
}

func newSessionsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session and its commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, store stores.Store) error {
				session, err := store.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				invs, err := store.ListInvocations(ctx, session.ID)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if jsonOutput {
					return printJSON(w, struct {
						*stores.Session
						Invocations []*stores.Invocation `json:"invocations"`
					}{session, invs})
				}
				fmt.Fprintf(w, "Session: %s\n", session.ID)
				fmt.Fprintf(w, "Backend: %s\n", session.Backend)
				fmt.Fprintf(w, "Model:   ndm %d, ndf %d\n", session.Dimensions, session.DOFPerNode)
				fmt.Fprintf(w, "Source:  %s\n", session.Source)
				fmt.Fprintf(w, "Status:  %s\n", session.Status)
				if session.Error != nil {
					fmt.Fprintf(w, "Error:   %s\n", *session.Error)
				}
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				for _, inv := range invs {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", inv.Seq, inv.Category, inv.Line)
				}
				return tw.Flush()
			})
		},
	}
}

func newSessionsExportCommand() *cobra.Command {
	var (
		output    string
		fromRedis bool
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a session as a transcript",
		Example: `  # Export to a file
  o3 sessions export 6f1c0d2e-8c1b-4a57-9a0e-1f9f3f1d2b7a -o frame.tcl

  # Export the copy kept in Redis
  o3 sessions export 6f1c0d2e-8c1b-4a57-9a0e-1f9f3f1d2b7a --redis`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			lines, err := storedLines(cmd.Context(), cfg, args[0], fromRedis)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			tw := transcript.NewWriter(w)
			if err := tw.Header(args[0], command.ModelConfig{
				Dimensions: cfg.Model.Dimensions,
				DOFPerNode: cfg.Model.DOFPerNode,
				Precision:  command.Precision(cfg.Model.Precision),
			}); err != nil {
				return err
			}
			for _, line := range lines {
				inv, ok, err := transcript.Parse(line)
				if err != nil {
					return fmt.Errorf("stored line %q: %w", line, err)
				}
				if !ok {
					continue
				}
				if err := tw.Write(inv); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "transcript file (default stdout)")
	cmd.Flags().BoolVar(&fromRedis, "redis", false, "read the transcript from Redis")

	return cmd
}

func newSessionsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ *config.Config, store stores.Store) error {
				if err := store.DeleteSession(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
				return nil
			})
		},
	}
}

// storedLines reads a recorded transcript from the session store or Redis.
func storedLines(ctx context.Context, cfg *config.Config, id string, fromRedis bool) ([]string, error) {
	if fromRedis {
		client := stores.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		return stores.RedisLines(ctx, client, cfg.Redis.KeyPrefix+id)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Lines(ctx, id)
}
