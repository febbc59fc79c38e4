package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/engine"
)

func init() {
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newCompleteCmd())
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start an experiment",
		Long: `Start a draft or paused experiment. The start date is stamped on the
first activation only; resuming from pause keeps the original date.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(reg *engine.Registry) error {
				if err := reg.Start(args[0]); err != nil {
					return err
				}
				fmt.Printf("Experiment %s is now active.\n", args[0])
				return nil
			})
		},
	}
}

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause an active experiment",
		Long: `Pause an active experiment. No new users are assigned while paused;
already-assigned users keep their variant and can still convert.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(reg *engine.Registry) error {
				if err := reg.Pause(args[0]); err != nil {
					return err
				}
				fmt.Printf("Experiment %s is paused.\n", args[0])
				return nil
			})
		},
	}
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an experiment and freeze its results",
		Long: `Complete an experiment from any non-completed state. The end date is
stamped and results are frozen. Completed experiments cannot be restarted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRegistry(func(reg *engine.Registry) error {
				if err := reg.Complete(args[0]); err != nil {
					return err
				}

				exp, err := reg.Get(args[0])
				if err != nil {
					return err
				}

				fmt.Printf("Experiment %s is completed.\n", args[0])
				if exp.Results.Winner != "" {
					fmt.Printf("Winner: %s (%.1f%% confidence)\n", exp.Results.Winner, exp.Results.Confidence)
				} else {
					fmt.Println("No statistically significant winner.")
				}
				return nil
			})
		},
	}
}
