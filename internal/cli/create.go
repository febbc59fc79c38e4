package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/engine"
	"github.com/splitkit/splitkit/internal/experiment"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		variants    string
		traffic     int
		goals       string
		pages       string
		description string
		startNow    bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new experiment",
		Long: `Create a new experiment with two variants (control first).

Examples:
  splitkit create hero --variants "Control,New Hero" --goals purchase
  splitkit create cta --variants "A,B" --goals signup --traffic 20 --pages "/pricing,*checkout"
  splitkit create hero --variants "A,B" --goals purchase --start`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if variants == "" {
				prompt := promptui.Prompt{
					Label: "Variants (comma-separated, control first)",
				}
				entered, err := prompt.Run()
				if err != nil {
					if err == promptui.ErrInterrupt {
						os.Exit(0)
					}
					return err
				}
				variants = entered
			}

			variantList := splitList(variants)
			if len(variantList) < 2 {
				return fmt.Errorf("need at least 2 variants. Example: --variants \"A,B\"")
			}
			goalList := splitList(goals)
			if len(goalList) == 0 {
				return fmt.Errorf("need at least one goal. Example: --goals purchase")
			}

			variantConfigs := make([]experiment.Variant, len(variantList))
			for i, v := range variantList {
				variantConfigs[i] = experiment.Variant{Name: v}
			}

			return withRegistry(func(reg *engine.Registry) error {
				exp, err := reg.Create(experiment.Config{
					Name:              name,
					Description:       description,
					Variants:          variantConfigs,
					TrafficAllocation: traffic,
					TargetPages:       splitList(pages),
					Goals:             goalList,
				})
				if err != nil {
					return fmt.Errorf("failed to create experiment: %w", err)
				}

				if startNow {
					if err := reg.Start(exp.ID); err != nil {
						return fmt.Errorf("failed to start experiment: %w", err)
					}
					exp.Status = experiment.StatusActive
				}

				fmt.Printf("Created experiment '%s' (%s) with %d variants:\n", exp.Name, exp.ID, len(exp.Variants))
				for _, v := range exp.Variants {
					fmt.Printf("  %s: %s\n", v.ID, v.Name)
				}
				fmt.Printf("  Traffic to challenger: %d%%\n", exp.TrafficAllocation)
				fmt.Printf("  Goals: %s\n", strings.Join(exp.Goals, ", "))
				if len(exp.TargetPages) > 0 {
					fmt.Printf("  Target pages: %s\n", strings.Join(exp.TargetPages, ", "))
				}
				fmt.Printf("  Status: %s\n", exp.Status)

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated variant names, control first")
	cmd.Flags().IntVarP(&traffic, "traffic", "t", 50, "percent of traffic routed to the challenger (1-99)")
	cmd.Flags().StringVarP(&goals, "goals", "g", "", "comma-separated conversion goal names (required)")
	cmd.Flags().StringVar(&pages, "pages", "", "comma-separated target page patterns (empty matches all)")
	cmd.Flags().StringVar(&description, "description", "", "experiment description")
	cmd.Flags().BoolVar(&startNow, "start", false, "start the experiment immediately")
	cmd.MarkFlagRequired("goals")

	return cmd
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
