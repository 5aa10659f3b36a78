package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "domainlens"

// Metrics holds all DomainLens metric instruments.
type Metrics struct {
	BatchesStarted   metric.Int64Counter
	BatchesCompleted metric.Int64Counter
	BatchesFailed    metric.Int64Counter
	DomainsAnalyzed  metric.Int64Counter
	BatchDuration    metric.Float64Histogram
	AnalyzeDuration  metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.BatchesStarted, err = meter.Int64Counter("domainlens.batches.started",
		metric.WithDescription("Number of batches started"))
	if err != nil {
		return nil, err
	}

	m.BatchesCompleted, err = meter.Int64Counter("domainlens.batches.completed",
		metric.WithDescription("Number of batches completed"))
	if err != nil {
		return nil, err
	}

	m.BatchesFailed, err = meter.Int64Counter("domainlens.batches.failed",
		metric.WithDescription("Number of batches failed"))
	if err != nil {
		return nil, err
	}

	m.DomainsAnalyzed, err = meter.Int64Counter("domainlens.domains.analyzed",
		metric.WithDescription("Number of domains analyzed, by outcome"))
	if err != nil {
		return nil, err
	}

	m.BatchDuration, err = meter.Float64Histogram("domainlens.batch.duration_seconds",
		metric.WithDescription("Batch duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.AnalyzeDuration, err = meter.Float64Histogram("domainlens.analyze.duration_seconds",
		metric.WithDescription("Single domain analysis duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordDomain counts one analyzed domain. A nil Metrics records nothing.
func (m *Metrics) RecordDomain(ctx context.Context, success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "error"
	if success {
		outcome = "success"
	}
	m.DomainsAnalyzed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	m.AnalyzeDuration.Record(ctx, elapsed.Seconds())
}

// RecordBatchStart counts a started batch.
func (m *Metrics) RecordBatchStart(ctx context.Context) {
	if m == nil {
		return
	}
	m.BatchesStarted.Add(ctx, 1)
}

// RecordBatchEnd counts a finished batch and its duration.
func (m *Metrics) RecordBatchEnd(ctx context.Context, completed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	if completed {
		m.BatchesCompleted.Add(ctx, 1)
	} else {
		m.BatchesFailed.Add(ctx, 1)
	}
	m.BatchDuration.Record(ctx, elapsed.Seconds())
}
