// Package gdc resolves which quantification files exist for a biological
// site by querying the GDC files endpoint.
package gdc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// queryFields are the metadata fields the pipeline consumes.
const queryFields = "file_id,file_name,cases.samples.submitter_id,cases.samples.sample_type,cases.project.project_id"

// Resolver queries file metadata for biological sites.
type Resolver struct {
	endpoint string
	pageSize int
	client   *http.Client
	logger   *slog.Logger
}

// NewResolver creates a Resolver against the given files endpoint.
func NewResolver(endpoint string, pageSize int, timeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		endpoint: endpoint,
		pageSize: pageSize,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// ResolveSite returns the sample records for open-access STAR gene
// expression quantification files of one primary site.
func (r *Resolver) ResolveSite(ctx context.Context, primarySite string) ([]SampleRecord, error) {
	query := filesQuery{
		Filters: andFilter{
			Op: "and",
			Content: []eqFilter{
				{Op: "=", Content: fieldValue{Field: "cases.primary_site", Value: primarySite}},
				{Op: "=", Content: fieldValue{Field: "data_category", Value: "Transcriptome Profiling"}},
				{Op: "=", Content: fieldValue{Field: "data_type", Value: "Gene Expression Quantification"}},
				{Op: "=", Content: fieldValue{Field: "experimental_strategy", Value: "RNA-Seq"}},
				{Op: "=", Content: fieldValue{Field: "analysis.workflow_type", Value: "STAR - Counts"}},
				{Op: "=", Content: fieldValue{Field: "access", Value: "open"}},
				{Op: "=", Content: fieldValue{Field: "data_format", Value: "TSV"}},
			},
		},
		Fields: queryFields,
		Format: "JSON",
		Size:   r.pageSize,
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal files query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create files request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query files endpoint %s: %w", r.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bad status '%s' from files endpoint: %s", resp.Status, string(preview))
	}

	var parsed filesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode files response: %w", err)
	}

	records := flattenHits(parsed.Data.Hits)
	r.logger.Debug("Resolved site metadata.",
		slog.String("site", primarySite),
		slog.Int("hits", len(parsed.Data.Hits)),
		slog.Int("records", len(records)),
	)
	return records, nil
}

// flattenHits expands hits x cases x samples into flat records, skipping
// entries without a sample id or type.
func flattenHits(hits []fileHit) []SampleRecord {
	records := make([]SampleRecord, 0, len(hits))
	for _, hit := range hits {
		for _, c := range hit.Cases {
			for _, s := range c.Samples {
				if s.SubmitterID == "" || s.SampleType == "" {
					continue
				}
				records = append(records, SampleRecord{
					FileID:     hit.FileID,
					SampleID:   s.SubmitterID,
					FileName:   hit.FileName,
					SampleType: s.SampleType,
					ProjectID:  c.Project.ProjectID,
				})
			}
		}
	}
	return records
}
