// Package pipeline runs the per-sample fetch, decode, and extract sequence
// concurrently over a batch of sample records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brensch/gdcmatrix/internal/decoder"
	"github.com/brensch/gdcmatrix/internal/extractor"
	"github.com/brensch/gdcmatrix/internal/fetcher"
	"github.com/brensch/gdcmatrix/internal/gdc"
	"github.com/brensch/gdcmatrix/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// Outcome is the result of one sample invocation. Exactly one outcome is
// emitted per submitted record, in completion order.
type Outcome struct {
	Record  gdc.SampleRecord
	Sample  *extractor.ParsedSample // nil when the sample failed
	Err     error                   // contained failure diagnostic
	Elapsed time.Duration
}

// OK reports whether the sample was fully processed.
func (o Outcome) OK() bool { return o.Err == nil && o.Sample != nil }

// ErrorKind classifies a contained failure for diagnostics and metrics.
func (o Outcome) ErrorKind() string {
	var fetchErr *fetcher.FetchError
	var frameErr *decoder.FrameError
	var schemaErr *extractor.SchemaError
	switch {
	case o.Err == nil:
		return ""
	case errors.As(o.Err, &fetchErr):
		return "fetch"
	case errors.As(o.Err, &frameErr):
		return "frame"
	case errors.As(o.Err, &schemaErr):
		return "schema"
	default:
		return "parse"
	}
}

// Pipeline fans sample invocations out over a bounded worker pool.
type Pipeline struct {
	fetcher *fetcher.Fetcher
	workers int64
	logger  *slog.Logger
}

// New creates a Pipeline bounded to the given concurrent invocation count.
func New(f *fetcher.Fetcher, workers int, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{fetcher: f, workers: int64(workers), logger: logger}
}

// ProcessSample performs fetch -> decode -> extract for one record. The
// returned error is diagnostic only; callers must treat it as "no result
// for this sample", never as a batch failure.
func (p *Pipeline) ProcessSample(ctx context.Context, rec gdc.SampleRecord) (*extractor.ParsedSample, error) {
	done := metrics.FetchStarted()
	payload, err := p.fetcher.Fetch(ctx, rec.FileID)
	done()
	if err != nil {
		return nil, err
	}
	metrics.RecordPayload(len(payload))

	rc, err := decoder.Open(payload)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	sample, err := extractor.Extract(rc, rec.SampleID)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rec.FileName, err)
	}
	return sample, nil
}

// Run submits one invocation per record and yields each Outcome as it
// completes. The returned channel carries exactly len(records) outcomes and
// is closed once all invocations finish. Once submitted, invocations run to
// completion or individual failure; there is no early-abort path beyond the
// per-request timeout and ctx.
func (p *Pipeline) Run(ctx context.Context, records []gdc.SampleRecord) <-chan Outcome {
	results := make(chan Outcome, len(records))
	sem := semaphore.NewWeighted(p.workers)

	var wg sync.WaitGroup
	for _, rec := range records {
		wg.Add(1)
		go func(rec gdc.SampleRecord) {
			defer wg.Done()
			start := time.Now()

			if err := sem.Acquire(ctx, 1); err != nil {
				results <- Outcome{Record: rec, Err: err, Elapsed: time.Since(start)}
				return
			}
			defer sem.Release(1)

			sample, err := p.ProcessSample(ctx, rec)
			outcome := Outcome{Record: rec, Sample: sample, Err: err, Elapsed: time.Since(start)}

			if outcome.OK() {
				metrics.RecordSuccess(outcome.Elapsed)
				p.logger.Info("Processed file.",
					slog.String("file_name", rec.FileName),
					slog.String("sample_id", rec.SampleID),
					slog.Duration("duration", outcome.Elapsed.Round(time.Millisecond)),
				)
			} else {
				metrics.RecordFailure(outcome.ErrorKind(), outcome.Elapsed)
				p.logger.Warn("Skipping sample.",
					slog.String("file_id", rec.FileID),
					slog.String("file_name", rec.FileName),
					slog.String("kind", outcome.ErrorKind()),
					"error", err,
				)
			}
			results <- outcome
		}(rec)
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}
