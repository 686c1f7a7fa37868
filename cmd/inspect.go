package cmd

import (
	"context"
	"fmt"

	"github.com/brensch/gdcmatrix/internal/inspector"

	"github.com/spf13/cobra"
)

// inspectCmd summarizes generated matrix files.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect generated matrix Parquet files using DuckDB",
	Long: `Scans the output directory for matrix Parquet files and prints gene
and sample counts per site, group and measure.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		logger.Info("Starting matrix inspection...")

		if err := inspector.InspectMatrices(context.Background(), getDB(), cfg.OutputDir, logger); err != nil {
			logger.Error("Inspection completed with errors", "error", err)
			return fmt.Errorf("inspection failed: %w", err)
		}

		logger.Info("Matrix inspection completed successfully.")
		return nil
	},
}

func init() {
}
