package commands

import (
	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/config"
)

func newRecordCommand() *cobra.Command {
	var (
		flags  scriptFlags
		output string
		store  bool
	)

	cmd := &cobra.Command{
		Use:   "record <script.star>",
		Short: "Record a model script as a transcript",
		Long: `Run a model script without an engine and write the commands it issues
as a transcript. The transcript can be replayed later against any backend.`,
		Example: `  # Record a transcript
  o3 record frame.star -o frame.tcl

  # Record into the session store only
  o3 record frame.star --store`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd, func(cfg *config.Config) {
				cfg.Backend.Kind = config.BackendRecord
				cfg.Backend.Transcript = output
				if cmd.Flags().Changed("store") {
					cfg.Backend.Store = store
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
	cmd.Flags().StringVarP(&output, "output", "o", "", "transcript file")
	cmd.Flags().BoolVar(&store, "store", false, "record the session in the session store")

	return cmd
}
