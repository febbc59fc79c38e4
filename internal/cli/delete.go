package cli

import (
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/engine"
)

func init() {
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newResetCmd())
}

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an experiment and all of its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm(fmt.Sprintf("Delete experiment %s and all its assignments", args[0])) {
				fmt.Println("Aborted.")
				return nil
			}

			return withRegistry(func(reg *engine.Registry) error {
				if err := reg.Delete(args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted experiment %s.\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}

func newResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset <id>",
		Short: "Clear an experiment's assignments and zero its results",
		Long: `Reset drops every assignment for the experiment and zeroes its
counters and results. Not allowed once the experiment is completed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm(fmt.Sprintf("Reset experiment %s (drops all assignments)", args[0])) {
				fmt.Println("Aborted.")
				return nil
			}

			return withRegistry(func(reg *engine.Registry) error {
				if err := reg.Reset(args[0]); err != nil {
					return err
				}
				fmt.Printf("Reset experiment %s.\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}

func confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return false
	}
	return true
}
