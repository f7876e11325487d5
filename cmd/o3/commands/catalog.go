package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/o3go/o3go/pkg/catalog"
)

func newCatalogCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "catalog [filter]",
		Short: "List the commands scripts can issue",
		Long: `List every command schema in the catalog with its usage line.

The filter matches command and op type names as a substring.`,
		Example: `  # Everything
  o3 catalog

  # Materials only
  o3 catalog --category uniaxial_material

  # Anything mentioning Steel
  o3 catalog Steel`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := ""
			if len(args) == 1 {
				filter = strings.ToLower(args[0])
			}

			type entry struct {
				Key      string `json:"key"`
				Category string `json:"category"`
				Usage    string `json:"usage"`
			}
			var entries []entry
			for _, s := range catalog.Default().All() {
				if category != "" && s.Category().String() != category {
					continue
				}
				if filter != "" && !strings.Contains(strings.ToLower(s.Key()), filter) {
					continue
				}
				entries = append(entries, entry{Key: s.Key(), Category: s.Category().String(), Usage: s.Usage()})
			}

			w := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(w, entries)
			}
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\n", e.Category, e.Usage)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only list this category (e.g. element, section)")

	return cmd
}
