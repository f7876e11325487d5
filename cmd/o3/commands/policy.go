package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/config"
	"github.com/o3go/o3go/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the rego policies guarding sessions",
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyShowCommand())

	return cmd
}

// loadPolicyEngine builds a policy engine from the configured builtins and
// paths, whether or not the guard is enabled.
func loadPolicyEngine(cmd *cobra.Command, extra []string) (*policy.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	pe, err := policy.NewEngine(log.Logger, policy.WithBuiltins(cfg.Policy.Builtins))
	if err != nil {
		return nil, err
	}
	paths := append(append([]string{}, cfg.Policy.Paths...), extra...)
	if len(paths) > 0 {
		if err := pe.LoadPolicies(cmd.Context(), paths); err != nil {
			return nil, err
		}
	}
	return pe, nil
}

func newPolicyListCommand() *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List policies",
		Example: `  # Configured policies
  o3 policy list

  # Check a policy directory compiles
  o3 policy list --path ./policies`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pe, err := loadPolicyEngine(cmd, paths)
			if err != nil {
				return err
			}
			policies := pe.ListPolicies()

			w := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(w, policies)
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSEVERITY\tENABLED\tCOMMANDS\tSOURCE\tDESCRIPTION")
			for _, p := range policies {
				source := p.Source
				if p.Builtin {
					source = "builtin"
				}
				commands := "*"
				if len(p.Commands) > 0 {
					commands = strings.Join(p.Commands, ",")
				}
				fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\t%s\n", p.Name, p.Severity, p.Enabled, commands, source, p.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVarP(&paths, "path", "p", nil, "additional policy files or directories")

	return cmd
}

func newPolicyShowCommand() *cobra.Command {
	var paths []string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a policy's rego source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pe, err := loadPolicyEngine(cmd, paths)
			if err != nil {
				return err
			}
			p, err := pe.GetPolicy(args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s (%s)\n%s\n", p.Name, p.Severity, p.Rego)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&paths, "path", "p", nil, "additional policy files or directories")

	return cmd
}
