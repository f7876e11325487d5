package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/config"
	"github.com/o3go/o3go/pkg/engine"
	"github.com/o3go/o3go/pkg/script"
	"github.com/o3go/o3go/pkg/telemetry"
)

// scriptFlags are the flags shared by the commands that run a model script.
type scriptFlags struct {
	inputs  map[string]string
	timeout time.Duration
}

func (f *scriptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringToStringVarP(&f.inputs, "input", "i", nil, "script input variables (name=value)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", script.DefaultTimeout, "script execution timeout")
}

// scriptReport is what run, record and check print.
type scriptReport struct {
	Session string          `json:"session"`
	Backend string          `json:"backend"`
	Script  string          `json:"script"`
	Result  *script.Result  `json:"result"`
	Summary *engine.Summary `json:"summary,omitempty"`
}

func newRunCommand() *cobra.Command {
	var (
		flags      scriptFlags
		backend    string
		transcript string
		store      bool
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "run <script.star>",
		Short: "Run a model script",
		Long: `Run a Starlark model script against the configured backend.

Every command the script issues is typed against the catalog, checked by the
policy guard when enabled, and sent to the backend. Accepted commands are
recorded to the transcript, the session store and Redis as configured.`,
		Example: `  # Dry run against the reference engine
  o3 run frame.star

  # Drive the configured engine host and keep a transcript
  o3 run frame.star --backend engine --transcript frame.tcl

  # Pass inputs to the script
  o3 run frame.star --input bays=3 --input height=3.5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, func(cfg *config.Config) {
				if backend != "" {
					cfg.Backend.Kind = backend
				}
				if transcript != "" {
					cfg.Backend.Transcript = transcript
				}
				if cmd.Flags().Changed("store") {
					cfg.Backend.Store = store
				}
				if cmd.Flags().Changed("strict") {
					cfg.Backend.Strict = strict
				}
			})
			if err != nil {
				return err
			}
			defer func() { _ = env.shutdown() }()

			report, err := runScript(cmd.Context(), env, args[0], flags, nil)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "backend kind (reference, engine, record)")
	cmd.Flags().StringVarP(&transcript, "transcript", "o", "", "also write a transcript to this file")
	cmd.Flags().BoolVar(&store, "store", false, "record the session in the session store")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject commands the catalog does not know")

	return cmd
}

// runScript opens a session, runs the script on it and closes the session.
// ref, when set, is the reference engine the session drives.
func runScript(ctx context.Context, env *environment, path string, flags scriptFlags, ref *engine.Engine) (*scriptReport, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	ctx = env.tel.WithContext(ctx)
	run, err := env.openSession(ctx, path, ref)
	if err != nil {
		return nil, err
	}

	ctx, span := env.tel.Tracer.StartScriptSpan(ctx, path, run.session.ID())
	runner := script.NewRunner(
		script.WithTimeout(flags.timeout),
		script.WithLogger(env.tel.Logger.WithScript(path).WithSession(run.session.ID()).Zerolog()),
	)
	res, runErr := runner.Run(ctx, run.session, path, src, inputValues(flags.inputs))
	telemetry.RecordError(span, runErr)
	span.End()

	report := &scriptReport{
		Session: run.session.ID(),
		Backend: env.cfg.Backend.Kind,
		Script:  path,
		Result:  res,
	}
	if run.reference != nil {
		summary := run.reference.Summary()
		report.Summary = &summary
	}

	if err := run.finish(ctx, runErr); err != nil {
		env.logger.Warn().Err(err).Str("session", report.Session).Msg("failed to close session")
	}
	return report, runErr
}

// inputValues converts flag values to script inputs. Numbers become ints or
// floats, true and false become bools, everything else stays a string.
func inputValues(raw map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = i
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = f
		} else if b, err := strconv.ParseBool(v); err == nil {
			out[k] = b
		} else {
			out[k] = v
		}
	}
	return out
}

func writeReport(w io.Writer, r *scriptReport) error {
	if jsonOutput {
		return printJSON(w, r)
	}

	fmt.Fprintf(w, "Session:  %s\n", r.Session)
	fmt.Fprintf(w, "Backend:  %s\n", r.Backend)
	fmt.Fprintf(w, "Commands: %d in %v\n", r.Result.Commands, r.Result.ExecutionTime.Round(time.Millisecond))
	if s := r.Summary; s != nil {
		fmt.Fprintf(w, "Model:    ndm %d, ndf %d\n", s.Dimensions, s.DOFPerNode)
		cats := make([]string, 0, len(s.Counts))
		for c, n := range s.Counts {
			cats = append(cats, fmt.Sprintf("%s=%d", c, n))
		}
		sort.Strings(cats)
		for _, c := range cats {
			fmt.Fprintf(w, "  %s\n", c)
		}
		if s.Analysis != "" {
			fmt.Fprintf(w, "Analysis: %s, time %g\n", s.Analysis, s.Time)
		}
	}
	return nil
}
