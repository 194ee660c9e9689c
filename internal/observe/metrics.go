// Package observe holds the OpenTelemetry metrics and tracing used by the scoring
// service and its HTTP surface.
//
// Instruments are created from a [metric.MeterProvider]. [InitProvider] installs a
// Prometheus exporter bridge so the same instruments can be scraped at /metrics. Tests
// should build their own [Metrics] with [NewMetrics] over a manual reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/himanishpuri/KaraokeScore"

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds every instrument the service records. Safe for concurrent use.
type Metrics struct {
	// ScoreDuration covers one full scoring request, extraction included.
	ScoreDuration metric.Float64Histogram

	// ExtractionDuration tracks one contour extraction. Attributes: method, role.
	ExtractionDuration metric.Float64Histogram

	// FinalScore is the distribution of successful final scores.
	FinalScore metric.Float64Histogram

	// Results counts finished requests. Attributes: status, stage.
	Results metric.Int64Counter

	// ActiveScorings is the number of requests currently in the pipeline.
	ActiveScorings metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP handling time. Attributes: method, path, code.
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

var scoreBuckets = []float64{
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ScoreDuration, err = m.Float64Histogram("karaoke.score.duration",
		metric.WithDescription("Latency of a complete scoring request."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractionDuration, err = m.Float64Histogram("karaoke.extraction.duration",
		metric.WithDescription("Latency of pitch contour extraction by method and role."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FinalScore, err = m.Float64Histogram("karaoke.final_score",
		metric.WithDescription("Distribution of final scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Results, err = m.Int64Counter("karaoke.results",
		metric.WithDescription("Finished scoring requests by status and failing stage."),
	); err != nil {
		return nil, err
	}
	if met.ActiveScorings, err = m.Int64UpDownCounter("karaoke.active_scorings",
		metric.WithDescription("Scoring requests currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("karaoke.http.request.duration",
		metric.WithDescription("HTTP request latency by method, path, and status code."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a shared instance built from the global meter provider.
// Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordExtraction records one extraction latency.
func (m *Metrics) RecordExtraction(ctx context.Context, method, role string, seconds float64) {
	m.ExtractionDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("role", role),
		),
	)
}

// RecordResult counts a finished request. stage is empty on success.
func (m *Metrics) RecordResult(ctx context.Context, status, stage string) {
	m.Results.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("stage", stage),
		),
	)
}
