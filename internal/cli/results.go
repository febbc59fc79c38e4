package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/experiment"
	"github.com/splitkit/splitkit/internal/stats"
)

var resultsCmd = &cobra.Command{
	Use:   "results <id>",
	Short: "Show detailed results for an experiment",
	Long:  `Show detailed results including conversion rates and confidence intervals.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	return withRegistry(func(reg *engine.Registry) error {
		exp, err := reg.Get(args[0])
		if err != nil {
			return err
		}

		// Print header
		fmt.Printf("EXPERIMENT: %s\n", exp.Name)
		fmt.Printf("STATUS: %s\n", strings.ToUpper(string(exp.Status)))
		fmt.Printf("GOALS: %s\n", strings.Join(exp.Goals, ", "))
		fmt.Printf("CREATED: %s\n", exp.CreatedAt.Format("2006-01-02"))
		if exp.StartDate != nil {
			fmt.Printf("STARTED: %s\n", exp.StartDate.Format("2006-01-02"))
		}
		if exp.EndDate != nil {
			fmt.Printf("ENDED: %s\n", exp.EndDate.Format("2006-01-02"))
		}
		fmt.Println()

		// Print table header
		fmt.Println("VARIANT           VISITORS  CONVERSIONS  RATE     95% CI")
		fmt.Println(strings.Repeat("─", 62))

		printVariantRow(exp.Control(), exp.Results.VariantA, exp.Results.Winner)
		printVariantRow(exp.Challenger(), exp.Results.VariantB, exp.Results.Winner)
		fmt.Println()

		// Print significance message
		res := exp.Results
		switch {
		case res.StatisticalSignificance:
			winner := winnerName(exp)
			fmt.Printf("Statistical significance: %.1f%% confident \"%s\" is the winner\n", res.Confidence, winner)
		case res.VariantA.Visitors < stats.MinSampleSize || res.VariantB.Visitors < stats.MinSampleSize:
			fmt.Printf("Statistical significance: need at least %d visitors per variant\n", stats.MinSampleSize)
		default:
			fmt.Println("Statistical significance: no significant difference yet")
		}

		return nil
	})
}

func printVariantRow(v experiment.Variant, res experiment.VariantResult, winnerID string) {
	indicator := ""
	if winnerID != "" && v.ID == winnerID {
		indicator = " ← WINNER"
	}

	lower, upper := stats.WilsonInterval(res.Conversions, res.Visitors, 0.95)
	ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", lower*100, upper*100)
	if res.Visitors == 0 {
		ciStr = "N/A"
	}

	// Truncate name if too long
	name := v.Name
	if len(name) > 16 {
		name = name[:13] + "..."
	}

	fmt.Printf("%-16s  %-8d  %-11d  %-7s  %s%s\n",
		name,
		res.Visitors,
		res.Conversions,
		formatPercent(res.ConversionRate),
		ciStr,
		indicator,
	)
}

func winnerName(exp *experiment.Experiment) string {
	for _, v := range exp.Variants {
		if v.ID == exp.Results.Winner {
			return v.Name
		}
	}
	return exp.Results.Winner
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
