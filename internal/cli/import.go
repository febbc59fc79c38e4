package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/engine"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a previously exported experiment",
	Long: `Import an experiment export file into the registry. Variants,
assignments, and results are reproduced exactly as exported.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read export file: %w", err)
	}

	var export engine.Export
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("failed to parse export file: %w", err)
	}

	return withRegistry(func(reg *engine.Registry) error {
		exp, err := reg.Import(&export)
		if err != nil {
			return fmt.Errorf("failed to import experiment: %w", err)
		}

		fmt.Printf("Imported experiment '%s' (%s) with %d assignments.\n",
			exp.Name, exp.ID, len(export.Assignments))
		return nil
	})
}
