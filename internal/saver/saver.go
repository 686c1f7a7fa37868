// Package saver persists finished expression matrices as CSV and Parquet.
package saver

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/brensch/gdcmatrix/internal/aggregator"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// SiteDir returns the output directory for one biological site.
func SiteDir(outputDir, site string) string {
	return filepath.Join(outputDir, site)
}

// SaveGroupMatrices writes the three measure matrices of one group as CSV
// and Parquet under {outputDir}/{site}/. Returns the written paths.
func SaveGroupMatrices(outputDir, site, group string, m *aggregator.Matrices, logger *slog.Logger) ([]string, error) {
	dir := SiteDir(outputDir, site)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}

	var paths []string
	for _, measure := range m.Measures() {
		csvPath := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", group, measure.Name))
		if err := WriteMatrixCSV(csvPath, m, measure); err != nil {
			return paths, err
		}
		paths = append(paths, csvPath)

		parquetPath := filepath.Join(dir, fmt.Sprintf("%s_%s.parquet", group, measure.Name))
		if err := WriteMatrixParquet(parquetPath, m, measure); err != nil {
			return paths, err
		}
		paths = append(paths, parquetPath)

		logger.Debug("Saved matrix.",
			slog.String("csv", csvPath),
			slog.String("parquet", parquetPath),
			slog.Int("genes", len(m.GeneIDs)),
			slog.Int("samples", len(m.SampleIDs)),
		)
	}
	return paths, nil
}

// WriteMatrixCSV writes one measure matrix with header
// gene_id,gene_name,<sample...> and one row per gene in canonical order.
func WriteMatrixCSV(path string, m *aggregator.Matrices, measure aggregator.NamedMeasure) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"gene_id", "gene_name"}, m.SampleIDs...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header %s: %w", path, err)
	}

	row := make([]string, len(header))
	for i := range m.GeneIDs {
		row[0] = m.GeneIDs[i]
		row[1] = m.GeneNames[i]
		for j, col := range measure.Columns {
			row[j+2] = strconv.FormatFloat(col[i], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// WriteMatrixParquet writes the same matrix as Parquet with snappy
// compression: gene columns as UTF8, sample columns as DOUBLE.
func WriteMatrixParquet(path string, m *aggregator.Matrices, measure aggregator.NamedMeasure) error {
	meta := make([]string, 0, len(m.SampleIDs)+2)
	meta = append(meta,
		"name=gene_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY",
		"name=gene_name, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY",
	)
	for _, sampleID := range m.SampleIDs {
		meta = append(meta, fmt.Sprintf("name=%s, type=DOUBLE", sampleID))
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet %s: %w", path, err)
	}
	pw, err := writer.NewCSVWriter(meta, fw, 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("init parquet writer %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	row := make([]*string, len(meta))
	for i := range m.GeneIDs {
		values := make([]string, len(meta))
		values[0] = m.GeneIDs[i]
		values[1] = m.GeneNames[i]
		for j, col := range measure.Columns {
			values[j+2] = strconv.FormatFloat(col[i], 'g', -1, 64)
		}
		for j := range values {
			row[j] = &values[j]
		}
		if err := pw.WriteString(row); err != nil {
			pw.WriteStop()
			fw.Close()
			return fmt.Errorf("write parquet row %d of %s: %w", i, path, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("stop parquet writer %s: %w", path, err)
	}
	return fw.Close()
}
