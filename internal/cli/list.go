package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/experiment"
)

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all experiments",
	Long:  `List all experiments with their status and counters.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (draft, active, paused, completed)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withRegistry(func(reg *engine.Registry) error {
		var statuses []experiment.Status
		if listStatus != "" {
			statuses = append(statuses, experiment.Status(listStatus))
		}

		experiments := reg.List(statuses...)
		if len(experiments) == 0 {
			fmt.Println("No experiments yet.")
			fmt.Println()
			fmt.Println("Create one with:")
			fmt.Println("  splitkit create hero --variants \"A,B\" --goals purchase")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tVARIANTS\tVISITORS\tCONVERSIONS\tCREATED")

		for _, exp := range experiments {
			visitors := exp.Results.VariantA.Visitors + exp.Results.VariantB.Visitors
			conversions := exp.Results.VariantA.Conversions + exp.Results.VariantB.Conversions

			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				exp.ID,
				exp.Name,
				strings.ToUpper(string(exp.Status)),
				len(exp.Variants),
				visitors,
				conversions,
				exp.CreatedAt.Format("2006-01-02"),
			)
		}

		w.Flush()
		return nil
	})
}
