package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brensch/gdcmatrix/internal/saver"

	"github.com/spf13/cobra"
)

// saveCmd re-exports matrix CSVs as Parquet.
var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Re-export matrix CSV files as Parquet using DuckDB",
	Long: `Scans the output directory for matrix CSV files and writes a Parquet
twin next to each one via DuckDB's CSV reader. Useful when a Parquet file
went missing or a CSV was edited by hand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()

		logger.Info("Starting CSV to Parquet conversion...",
			slog.String("output_dir", cfg.OutputDir),
		)

		if err := saver.ConvertCSVsToParquet(context.Background(), getDB(), cfg.OutputDir, logger); err != nil {
			logger.Error("Conversion completed with errors", "error", err)
			return fmt.Errorf("save failed: %w", err)
		}

		logger.Info("Conversion completed successfully.")
		return nil
	},
}

func init() {
}
