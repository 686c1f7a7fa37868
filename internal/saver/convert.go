package saver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// ConvertCSVsToParquet re-exports every matrix CSV under outputDir as
// Parquet using DuckDB's CSV reader. Useful after hand-editing a CSV or
// when the Parquet twin of a matrix went missing. Conversion failures are
// accumulated per file; one bad CSV does not stop the rest.
func ConvertCSVsToParquet(ctx context.Context, dbConn *sql.DB, outputDir string, logger *slog.Logger) error {
	pattern := filepath.Join(outputDir, "*", "*.csv")
	csvPaths, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(csvPaths) == 0 {
		logger.Info("No matrix CSVs found to convert.", slog.String("pattern", pattern))
		return nil
	}

	logger.Info("Converting matrix CSVs to Parquet.", slog.Int("count", len(csvPaths)))
	var finalErr error
	converted := 0
	for _, csvPath := range csvPaths {
		select {
		case <-ctx.Done():
			return errors.Join(finalErr, ctx.Err())
		default:
		}

		parquetPath := strings.TrimSuffix(csvPath, ".csv") + ".parquet"
		start := time.Now()
		query := fmt.Sprintf(
			`COPY (SELECT * FROM read_csv_auto('%s', header=true)) TO '%s' (FORMAT PARQUET, COMPRESSION SNAPPY);`,
			sqlQuote(csvPath), sqlQuote(parquetPath),
		)
		if _, err := dbConn.ExecContext(ctx, query); err != nil {
			logger.Error("Failed to convert CSV.", slog.String("csv", csvPath), "error", err)
			finalErr = errors.Join(finalErr, fmt.Errorf("convert %s: %w", filepath.Base(csvPath), err))
			continue
		}
		converted++
		logger.Info("Converted matrix.",
			slog.String("csv", csvPath),
			slog.String("parquet", parquetPath),
			slog.Duration("duration", time.Since(start).Round(time.Millisecond)),
		)
	}

	logger.Info("Conversion finished.", slog.Int("converted", converted), slog.Int("failed", len(csvPaths)-converted))
	return finalErr
}

func sqlQuote(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
