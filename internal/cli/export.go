package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/splitkit/splitkit/internal/engine"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export an experiment with its assignments",
	Long: `Export an experiment and all of its assignments as JSON.

Examples:
  splitkit export a1b2c3 > hero.json
  splitkit export a1b2c3 --out hero.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	return withRegistry(func(reg *engine.Registry) error {
		export, err := reg.Export(args[0])
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(export); err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}

		if exportOut != "" {
			fmt.Printf("Exported experiment %s (%d assignments) to %s\n",
				args[0], len(export.Assignments), exportOut)
		}
		return nil
	})
}
