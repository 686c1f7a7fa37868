// Package extractor parses STAR gene expression quantification tables into
// typed per-sample columns.
package extractor

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Required column names in a usable quantification table.
const (
	ColGeneID   = "gene_id"
	ColGeneName = "gene_name"
	ColTPM      = "tpm_unstranded"
	ColFPKM     = "fpkm_unstranded"
	ColFPKMUQ   = "fpkm_uq_unstranded"
)

// commentMarker prefixes non-data lines emitted by the quantifier.
const commentMarker = "#"

// summaryRowPrefix marks non-gene summary rows (N_unmapped, N_ambiguous,
// N_noFeature, ...) which are pipeline statistics, not genes.
const summaryRowPrefix = "N_"

var requiredColumns = []string{ColGeneID, ColGeneName, ColTPM, ColFPKM, ColFPKMUQ}

// SchemaError reports a table missing one or more required columns. Such a
// sample is unusable; no partial extraction is attempted.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParsedSample is the result of successfully extracting one file. All five
// sequences have equal length and positional correspondence.
type ParsedSample struct {
	SampleID  string
	GeneIDs   []string
	GeneNames []string
	TPM       []float64
	FPKM      []float64
	FPKMUQ    []float64
}

// Len returns the number of retained gene rows.
func (p *ParsedSample) Len() int { return len(p.GeneIDs) }

// Extract parses a decoded byte stream as a tab-delimited quantification
// table for the given sample. Row order is preserved from the source table;
// downstream alignment depends on it.
func Extract(r io.Reader, sampleID string) (*ParsedSample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)

	// Find the header line, skipping comments and blanks.
	var header []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, commentMarker) {
			continue
		}
		header = strings.Split(line, "\t")
		break
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan header: %w", err)
	}
	if header == nil {
		return nil, &SchemaError{Missing: requiredColumns}
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := colIndex[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	idIdx := colIndex[ColGeneID]
	nameIdx := colIndex[ColGeneName]
	tpmIdx := colIndex[ColTPM]
	fpkmIdx := colIndex[ColFPKM]
	uqIdx := colIndex[ColFPKMUQ]
	maxIdx := idIdx
	for _, idx := range []int{nameIdx, tpmIdx, fpkmIdx, uqIdx} {
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	sample := &ParsedSample{SampleID: sampleID}
	lineNumber := 1
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, commentMarker) {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= maxIdx {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", lineNumber, maxIdx+1, len(fields))
		}
		geneID := fields[idIdx]
		if strings.HasPrefix(geneID, summaryRowPrefix) {
			continue
		}

		tpm, err := strconv.ParseFloat(fields[tpmIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse %s: %w", lineNumber, ColTPM, err)
		}
		fpkm, err := strconv.ParseFloat(fields[fpkmIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse %s: %w", lineNumber, ColFPKM, err)
		}
		uq, err := strconv.ParseFloat(fields[uqIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse %s: %w", lineNumber, ColFPKMUQ, err)
		}

		sample.GeneIDs = append(sample.GeneIDs, geneID)
		sample.GeneNames = append(sample.GeneNames, fields[nameIdx])
		sample.TPM = append(sample.TPM, tpm)
		sample.FPKM = append(sample.FPKM, fpkm)
		sample.FPKMUQ = append(sample.FPKMUQ, uq)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan table near line %d: %w", lineNumber, err)
	}

	return sample, nil
}
