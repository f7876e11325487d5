package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/config"
	"github.com/o3go/o3go/pkg/engine"
)

func newCheckCommand() *cobra.Command {
	var (
		flags    scriptFlags
		strict   bool
		dot      string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "check <script.star>...",
		Short: "Dry-run model scripts against the reference engine",
		Long: `Run model scripts against the in-process reference engine only, each on
its own engine and several at a time.

Nothing is recorded. The check reports:
  - parameter, reference and ordering errors with their diagnostics
  - policy violations when the guard is enabled
  - materials, sections and series that nothing references

With --dot the reference graph of a single script is written in Graphviz
format.`,
		Example: `  # Check a script
  o3 check frame.star

  # Check strictly and draw the reference graph
  o3 check frame.star --strict --dot frame.dot

  # Check a directory of scripts, eight at a time
  o3 check models/*.star --parallel 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dot != "" && len(args) > 1 {
				return fmt.Errorf("--dot needs a single script")
			}

			env, err := loadEnvironment(cmd, func(cfg *config.Config) {
				cfg.Backend.Kind = config.BackendReference
				cfg.Backend.Transcript = ""
				cfg.Backend.Store = false
				cfg.Backend.Redis = false
				cfg.Backend.Strict = cfg.Backend.Strict || strict
			})
			if err != nil {
				return err
			}
			defer func() { _ = env.shutdown() }()

			reports := make([]*scriptReport, len(args))
			jobs := make([]engine.Job, len(args))
			for i, path := range args {
				jobs[i] = engine.Job{
					Name: path,
					Build: func(ctx context.Context, e *engine.Engine) error {
						report, err := runScript(ctx, env, path, flags, e)
						reports[i] = report
						return err
					},
				}
			}
			results := engine.NewBatch(parallel, env.referenceOptions()...).Run(cmd.Context(), jobs)

			w := cmd.OutOrStdout()
			for i, r := range results {
				if len(results) > 1 {
					fmt.Fprintf(w, "== %s\n", r.Name)
				}
				if r.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Name, r.Err)
					if d := diagnostic(r.Err); d != "" {
						fmt.Fprintln(cmd.ErrOrStderr(), d)
					}
					continue
				}
				if err := writeReport(w, reports[i]); err != nil {
					return err
				}
				for _, k := range r.Unused() {
					fmt.Fprintf(w, "unreferenced: %s\n", k)
				}
			}
			if failed := engine.Failed(results); len(failed) > 0 {
				if len(results) == 1 {
					return failed[0].Err
				}
				return fmt.Errorf("%d of %d scripts failed", len(failed), len(results))
			}

			if dot != "" {
				out, err := results[0].Engine.Graph().ToDOT()
				if err != nil {
					return err
				}
				if dot == "-" {
					_, err = fmt.Fprint(w, out)
					return err
				}
				return os.WriteFile(dot, []byte(out), 0o644)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "reject commands the catalog does not know")
	cmd.Flags().StringVar(&dot, "dot", "", "write the reference graph in DOT format (- for stdout)")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 4, "scripts checked at once")

	return cmd
}

// diagnostic returns the engine-style diagnostic carried by a command error.
func diagnostic(err error) string {
	var cerr *command.Error
	if errors.As(err, &cerr) {
		return cerr.Diagnostic
	}
	return ""
}
