// Package inspector summarizes generated matrix Parquet files with DuckDB.
package inspector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// matrixSummary holds the inspection result for one matrix file.
type matrixSummary struct {
	site     string
	group    string
	measure  string
	path     string
	genes    int64 // rows
	samples  int   // columns minus gene_id/gene_name
	statsErr error
}

// Matrix files are named {group}_{measure}.parquet under a site directory.
var matrixNameRegex = regexp.MustCompile(`^(tumor|normal)_(tpm|fpkm|fpkm_uq)\.parquet$`)

// InspectMatrices globs every matrix Parquet under outputDir and prints a
// per-file summary of gene rows and sample columns. Files that fail to read
// are reported but do not stop the rest.
func InspectMatrices(ctx context.Context, dbConn *sql.DB, outputDir string, logger *slog.Logger) error {
	pattern := filepath.Join(outputDir, "*", "*.parquet")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob parquet files in %s: %w", outputDir, err)
	}
	if len(paths) == 0 {
		logger.Info("No matrix parquet files found.", slog.String("dir", outputDir))
		return nil
	}
	logger.Info("Found matrix files to summarize.", slog.Int("count", len(paths)))

	var summaries []*matrixSummary
	var finalErr error
	for _, path := range paths {
		base := filepath.Base(path)
		matches := matrixNameRegex.FindStringSubmatch(base)
		if matches == nil {
			logger.Warn("Skipping file with unexpected name.", slog.String("file", base))
			continue
		}

		summary := &matrixSummary{
			site:    filepath.Base(filepath.Dir(path)),
			group:   matches[1],
			measure: matches[2],
			path:    path,
		}
		summaries = append(summaries, summary)

		columns, err := describeColumns(ctx, dbConn, path)
		if err != nil {
			summary.statsErr = err
			finalErr = errors.Join(finalErr, fmt.Errorf("describe %s: %w", base, err))
			continue
		}
		summary.samples = len(columns) - 2 // gene_id, gene_name

		countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM read_parquet('%s');`, sqlQuote(path))
		if err := dbConn.QueryRowContext(ctx, countSQL).Scan(&summary.genes); err != nil {
			summary.statsErr = err
			finalErr = errors.Join(finalErr, fmt.Errorf("count %s: %w", base, err))
		}
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].path < summaries[j].path })

	fmt.Println("\n--- Expression Matrix Summary ---")
	fmt.Printf("%-20s | %-8s | %-8s | %-10s | %-10s | %s\n", "Site", "Group", "Measure", "Genes", "Samples", "Errors")
	fmt.Println(strings.Repeat("-", 80))
	for _, s := range summaries {
		errorStr := ""
		if s.statsErr != nil {
			errorStr = s.statsErr.Error()
		}
		fmt.Printf("%-20s | %-8s | %-8s | %-10d | %-10d | %s\n", s.site, s.group, s.measure, s.genes, s.samples, errorStr)
	}
	fmt.Println(strings.Repeat("-", 80))

	if finalErr != nil {
		logger.Warn("Inspection completed with errors.", "error", finalErr)
	}
	return finalErr
}

func describeColumns(ctx context.Context, dbConn *sql.DB, path string) ([]string, error) {
	describeSQL := fmt.Sprintf(`DESCRIBE SELECT * FROM read_parquet('%s');`, sqlQuote(path))
	rows, err := dbConn.QueryContext(ctx, describeSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name, colType string
		var null, key, defaultVal, extra sql.NullString
		if err := rows.Scan(&name, &colType, &null, &key, &defaultVal, &extra); err != nil {
			return nil, err
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func sqlQuote(path string) string {
	return strings.ReplaceAll(strings.ReplaceAll(path, `\`, `/`), "'", "''")
}
