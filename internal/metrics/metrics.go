// Package metrics exposes prometheus instrumentation for pipeline runs.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	samplesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdcmatrix_samples_processed_total",
		Help: "Per-sample pipeline outcomes, labeled by result.",
	}, []string{"result"})

	sampleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gdcmatrix_sample_failures_total",
		Help: "Contained per-sample failures, labeled by error kind.",
	}, []string{"kind"})

	bytesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gdcmatrix_bytes_fetched_total",
		Help: "Raw payload bytes downloaded from the data endpoint.",
	})

	sampleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gdcmatrix_sample_duration_seconds",
		Help:    "Wall time of one fetch+parse invocation.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gdcmatrix_samples_in_flight",
		Help: "Sample fetches currently executing.",
	})
)

// RecordSuccess records one successfully parsed sample.
func RecordSuccess(elapsed time.Duration) {
	samplesProcessed.WithLabelValues("success").Inc()
	sampleDuration.Observe(elapsed.Seconds())
}

// RecordPayload records raw bytes downloaded from the data endpoint.
func RecordPayload(n int) {
	bytesFetched.Add(float64(n))
}

// RecordFailure records one contained per-sample failure.
func RecordFailure(kind string, elapsed time.Duration) {
	samplesProcessed.WithLabelValues("failure").Inc()
	sampleFailures.WithLabelValues(kind).Inc()
	sampleDuration.Observe(elapsed.Seconds())
}

// FetchStarted marks a fetch entering flight. The returned func marks exit.
func FetchStarted() func() {
	inFlight.Inc()
	return inFlight.Dec
}

// Serve exposes /metrics on addr until ctx is done. A no-op when addr is
// empty.
func Serve(ctx context.Context, addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("Serving metrics.", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped.", "error", err)
		}
	}()
}
