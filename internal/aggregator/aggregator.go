// Package aggregator folds per-sample extractions into cohort-level
// expression matrices sharing one canonical gene axis.
package aggregator

import (
	"fmt"
	"sort"

	"github.com/brensch/gdcmatrix/internal/extractor"
)

// Measure names, used as output file suffixes.
const (
	MeasureTPM    = "tpm"
	MeasureFPKM   = "fpkm"
	MeasureFPKMUQ = "fpkm_uq"
)

// AxisError reports a sample whose gene axis does not match the canonical
// axis of the run. The sample is dropped as a contained failure; merging it
// positionally would silently misalign data.
type AxisError struct {
	SampleID string
	Reason   string
}

func (e *AxisError) Error() string {
	return fmt.Sprintf("sample %s: gene axis mismatch: %s", e.SampleID, e.Reason)
}

// Matrices holds the three finished expression matrices for one group.
// Values are stored column-major: Columns(i) is one sample's measure values
// aligned to GeneIDs.
type Matrices struct {
	GeneIDs   []string
	GeneNames []string
	SampleIDs []string

	TPM    [][]float64
	FPKM   [][]float64
	FPKMUQ [][]float64
}

// Genes returns the length of the canonical gene axis.
func (m *Matrices) Genes() int { return len(m.GeneIDs) }

// Samples returns the number of sample columns.
func (m *Matrices) Samples() int { return len(m.SampleIDs) }

// NamedMeasure pairs a measure name with its sample columns.
type NamedMeasure struct {
	Name    string
	Columns [][]float64
}

// Measures returns the three measures in fixed order.
func (m *Matrices) Measures() []NamedMeasure {
	return []NamedMeasure{
		{Name: MeasureTPM, Columns: m.TPM},
		{Name: MeasureFPKM, Columns: m.FPKM},
		{Name: MeasureFPKMUQ, Columns: m.FPKMUQ},
	}
}

// Aggregator accumulates parsed samples for one group. It is not safe for
// concurrent use; the pipeline's completion stream is single-consumer.
type Aggregator struct {
	axisIDs   []string
	axisNames []string
	sampleIDs []string
	seen      map[string]bool

	tpm    [][]float64
	fpkm   [][]float64
	fpkmUQ [][]float64
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{seen: make(map[string]bool)}
}

// Add merges one parsed sample. The first sample establishes the canonical
// gene axis; every later sample is verified against it and rejected with
// *AxisError on mismatch. Duplicate sample ids are rejected to keep column
// labels unique.
func (a *Aggregator) Add(sample *extractor.ParsedSample) error {
	if a.seen[sample.SampleID] {
		return fmt.Errorf("duplicate sample id %s already present in group", sample.SampleID)
	}

	if a.axisIDs == nil {
		a.axisIDs = sample.GeneIDs
		a.axisNames = sample.GeneNames
	} else if err := a.checkAxis(sample); err != nil {
		return err
	}

	a.seen[sample.SampleID] = true
	a.sampleIDs = append(a.sampleIDs, sample.SampleID)
	a.tpm = append(a.tpm, sample.TPM)
	a.fpkm = append(a.fpkm, sample.FPKM)
	a.fpkmUQ = append(a.fpkmUQ, sample.FPKMUQ)
	return nil
}

func (a *Aggregator) checkAxis(sample *extractor.ParsedSample) error {
	if len(sample.GeneIDs) != len(a.axisIDs) {
		return &AxisError{
			SampleID: sample.SampleID,
			Reason:   fmt.Sprintf("expected %d genes, got %d", len(a.axisIDs), len(sample.GeneIDs)),
		}
	}
	for i, id := range sample.GeneIDs {
		if id != a.axisIDs[i] {
			return &AxisError{
				SampleID: sample.SampleID,
				Reason:   fmt.Sprintf("gene %d is %s, expected %s", i, id, a.axisIDs[i]),
			}
		}
	}
	return nil
}

// Count returns the number of merged samples.
func (a *Aggregator) Count() int { return len(a.sampleIDs) }

// Finalize fixes column order and returns the finished matrices. The second
// return is false when no sample was merged (the empty-group outcome). By
// default columns stay in completion order; sortColumns reorders them by
// sample id for reproducible output.
func (a *Aggregator) Finalize(sortColumns bool) (*Matrices, bool) {
	if len(a.sampleIDs) == 0 {
		return nil, false
	}

	m := &Matrices{
		GeneIDs:   a.axisIDs,
		GeneNames: a.axisNames,
		SampleIDs: a.sampleIDs,
		TPM:       a.tpm,
		FPKM:      a.fpkm,
		FPKMUQ:    a.fpkmUQ,
	}

	if sortColumns {
		order := make([]int, len(m.SampleIDs))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(i, j int) bool {
			return m.SampleIDs[order[i]] < m.SampleIDs[order[j]]
		})
		m.SampleIDs = reorder(m.SampleIDs, order)
		m.TPM = reorder(m.TPM, order)
		m.FPKM = reorder(m.FPKM, order)
		m.FPKMUQ = reorder(m.FPKMUQ, order)
	}
	return m, true
}

func reorder[T any](in []T, order []int) []T {
	out := make([]T, len(in))
	for i, idx := range order {
		out[i] = in[idx]
	}
	return out
}
