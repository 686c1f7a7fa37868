// Package cohort orchestrates full runs: resolve site metadata, partition
// samples into tumor/normal groups, drive the pipeline, and persist the
// aggregated matrices.
package cohort

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brensch/gdcmatrix/internal/aggregator"
	"github.com/brensch/gdcmatrix/internal/config"
	"github.com/brensch/gdcmatrix/internal/db"
	"github.com/brensch/gdcmatrix/internal/fetcher"
	"github.com/brensch/gdcmatrix/internal/gdc"
	"github.com/brensch/gdcmatrix/internal/pipeline"
	"github.com/brensch/gdcmatrix/internal/saver"

	"github.com/google/uuid"
)

// Group labels. Records matching neither are excluded from the run.
const (
	GroupTumor  = "tumor"
	GroupNormal = "normal"
)

// PartitionGroups splits sample records by sample type. The match is a
// case-insensitive substring test, so "Primary Tumor", "Recurrent Tumor"
// and "Solid Tissue Normal" all land where expected. Records matching
// neither label are dropped.
func PartitionGroups(records []gdc.SampleRecord) (tumor, normal []gdc.SampleRecord) {
	for _, rec := range records {
		sampleType := strings.ToLower(rec.SampleType)
		switch {
		case strings.Contains(sampleType, GroupNormal):
			normal = append(normal, rec)
		case strings.Contains(sampleType, GroupTumor):
			tumor = append(tumor, rec)
		}
	}
	return tumor, normal
}

// GroupResult summarises one group of one site after aggregation.
type GroupResult struct {
	Group     string
	Matrices  *aggregator.Matrices // nil when the group ended empty
	Paths     []string             // written output files
	Attempted int
	Succeeded int
	Failed    int
}

// Runner executes cohort runs for configured sites.
type Runner struct {
	cfg      config.Config
	resolver *gdc.Resolver
	pipe     *pipeline.Pipeline
	dbConn   *sql.DB
	logger   *slog.Logger
	runID    string

	// Notify, when set, receives every pipeline outcome as it completes.
	// Used by the TUI; must not block.
	Notify func(site, group string, outcome pipeline.Outcome)

	// NotifyGroup, when set, is called once per group before its samples
	// are submitted, with the number of records about to be attempted.
	NotifyGroup func(site, group string, total int)
}

// NewRunner wires a Runner from configuration. dbConn may be nil to run
// without the event log.
func NewRunner(cfg config.Config, dbConn *sql.DB, logger *slog.Logger) *Runner {
	f := fetcher.New(cfg.DataEndpoint, cfg.RequestTimeout)
	return &Runner{
		cfg:      cfg,
		resolver: gdc.NewResolver(cfg.FilesEndpoint, cfg.PageSize, cfg.RequestTimeout, logger),
		pipe:     pipeline.New(f, cfg.Workers, logger),
		dbConn:   dbConn,
		logger:   logger,
		runID:    uuid.NewString(),
	}
}

// RunID identifies this runner's rows in the event log.
func (r *Runner) RunID() string { return r.runID }

// Run processes every configured site sequentially. Site failures are
// accumulated and do not stop later sites; the joined error is returned at
// the end.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Starting cohort run.",
		slog.String("run_id", r.runID),
		slog.Int("sites", len(r.cfg.Sites)),
		slog.Int("workers", r.cfg.Workers),
	)

	var finalErr error
	for i, site := range r.cfg.Sites {
		select {
		case <-ctx.Done():
			r.logger.Warn("Run cancelled between sites.")
			return errors.Join(finalErr, ctx.Err())
		default:
		}

		l := r.logger.With(slog.String("site", site), slog.Int("site_num", i+1), slog.Int("total_sites", len(r.cfg.Sites)))
		if _, err := r.RunSite(ctx, site); err != nil {
			l.Error("Site failed.", "error", err)
			finalErr = errors.Join(finalErr, fmt.Errorf("site %s: %w", site, err))
		}
	}

	r.logger.Info("Cohort run finished.", slog.String("run_id", r.runID))
	return finalErr
}

// RunSite resolves one site's metadata and processes both groups. The
// returned map holds a GroupResult per group label. A resolution failure is
// a site failure; individual sample failures are contained inside the
// group results.
func (r *Runner) RunSite(ctx context.Context, site string) (map[string]GroupResult, error) {
	l := r.logger.With(slog.String("site", site))
	l.Info("Resolving site metadata.")

	records, err := r.resolver.ResolveSite(ctx, site)
	if err != nil {
		db.LogEvent(ctx, r.dbConn, db.Event{
			RunID: r.runID, Site: site, Event: db.EventSiteFailed, Message: err.Error(),
		})
		return nil, fmt.Errorf("resolve site metadata: %w", err)
	}

	tumor, normal := PartitionGroups(records)
	l.Info("Partitioned sample records.",
		slog.Int("hits", len(records)),
		slog.Int("tumor", len(tumor)),
		slog.Int("normal", len(normal)),
		slog.Int("excluded", len(records)-len(tumor)-len(normal)),
	)

	results := make(map[string]GroupResult, 2)
	var finalErr error
	for _, group := range []struct {
		name    string
		records []gdc.SampleRecord
	}{
		{GroupTumor, tumor},
		{GroupNormal, normal},
	} {
		select {
		case <-ctx.Done():
			return results, errors.Join(finalErr, ctx.Err())
		default:
		}

		result, err := r.runGroup(ctx, site, group.name, group.records)
		results[group.name] = result
		if err != nil {
			finalErr = errors.Join(finalErr, fmt.Errorf("group %s: %w", group.name, err))
		}
	}
	return results, finalErr
}

// runGroup drives the pipeline over one group's records, aggregates the
// successes and writes the matrices.
func (r *Runner) runGroup(ctx context.Context, site, group string, records []gdc.SampleRecord) (GroupResult, error) {
	l := r.logger.With(slog.String("site", site), slog.String("group", group))
	result := GroupResult{Group: group, Attempted: len(records)}
	if r.NotifyGroup != nil {
		r.NotifyGroup(site, group, len(records))
	}

	if len(records) == 0 {
		l.Info("No sample records for group, skipping.")
		db.LogEvent(ctx, r.dbConn, db.Event{
			RunID: r.runID, Site: site, Group: group, Event: db.EventGroupEmpty,
			Message: "no sample records resolved",
		})
		return result, nil
	}

	l.Info("Processing group.", slog.Int("records", len(records)))
	groupStart := time.Now()
	agg := aggregator.New()

	for outcome := range r.pipe.Run(ctx, records) {
		if r.Notify != nil {
			r.Notify(site, group, outcome)
		}

		if !outcome.OK() {
			result.Failed++
			r.logSampleEvent(ctx, site, group, outcome, db.EventSampleFailed, outcome.Err.Error())
			continue
		}

		if err := agg.Add(outcome.Sample); err != nil {
			result.Failed++
			l.Warn("Dropping sample rejected by aggregator.",
				slog.String("sample_id", outcome.Sample.SampleID),
				"error", err,
			)
			r.logSampleEvent(ctx, site, group, outcome, db.EventSampleFailed, err.Error())
			continue
		}

		result.Succeeded++
		r.logSampleEvent(ctx, site, group, outcome, db.EventSampleDone, "")
	}

	matrices, ok := agg.Finalize(r.cfg.SortColumns)
	groupDuration := time.Since(groupStart)
	if !ok {
		l.Warn("Group produced no usable samples, no matrices written.",
			slog.Int("attempted", result.Attempted),
			slog.Int("failed", result.Failed),
		)
		db.LogEvent(ctx, r.dbConn, db.Event{
			RunID: r.runID, Site: site, Group: group, Event: db.EventGroupEmpty,
			Message:  fmt.Sprintf("all %d samples failed", result.Attempted),
			Duration: &groupDuration,
		})
		return result, nil
	}
	result.Matrices = matrices

	paths, err := saver.SaveGroupMatrices(r.cfg.OutputDir, site, group, matrices, l)
	result.Paths = paths
	if err != nil {
		return result, fmt.Errorf("save matrices: %w", err)
	}

	l.Info("Group complete.",
		slog.Int("samples", matrices.Samples()),
		slog.Int("genes", matrices.Genes()),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", groupDuration.Round(time.Millisecond)),
	)
	db.LogEvent(ctx, r.dbConn, db.Event{
		RunID: r.runID, Site: site, Group: group, Event: db.EventGroupDone,
		Message:  fmt.Sprintf("%d/%d samples merged", result.Succeeded, result.Attempted),
		Duration: &groupDuration,
	})
	return result, nil
}

func (r *Runner) logSampleEvent(ctx context.Context, site, group string, outcome pipeline.Outcome, event, message string) {
	elapsed := outcome.Elapsed
	err := db.LogEvent(ctx, r.dbConn, db.Event{
		RunID:    r.runID,
		Site:     site,
		Group:    group,
		FileID:   outcome.Record.FileID,
		SampleID: outcome.Record.SampleID,
		Event:    event,
		Message:  message,
		Duration: &elapsed,
	})
	if err != nil {
		r.logger.Warn("Failed to record sample event.", slog.String("file_id", outcome.Record.FileID), "error", err)
	}
}
