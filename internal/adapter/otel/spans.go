package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "medscribe"

// StartFragmentSpan starts the root span of one fragment pipeline.
func StartFragmentSpan(ctx context.Context, fragmentID, subjectID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "fragment",
		trace.WithAttributes(
			attribute.String("fragment.id", fragmentID),
			attribute.String("subject.id", subjectID),
		),
	)
}

// StartStageSpan starts a span for a pipeline stage (extraction, classification).
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, stage)
}

// StartAgentSpan starts a span for one agent invocation.
func StartAgentSpan(ctx context.Context, agentName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent",
		trace.WithAttributes(attribute.String("agent.name", agentName)),
	)
}
