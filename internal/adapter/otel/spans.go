package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "domainlens"

// StartBatchSpan starts a span covering one batch run.
func StartBatchSpan(ctx context.Context, taskID string, domains int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "batch",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.Int("batch.domains", domains),
		),
	)
}

// StartAnalyzeSpan starts a span for a single domain analysis.
func StartAnalyzeSpan(ctx context.Context, domain string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "analyze",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("domain", domain)),
	)
}
