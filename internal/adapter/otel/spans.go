package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "docmesh"

// StartTaskSpan starts a span for one task execution on an agent server.
func StartTaskSpan(ctx context.Context, taskID, skill string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "task",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.skill", skill),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a reasoning loop.
func StartToolCallSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// StartDiscoverySpan starts a span for fetching one agent card.
func StartDiscoverySpan(ctx context.Context, baseURL string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "discovery.fetch",
		trace.WithAttributes(attribute.String("agent.base_url", baseURL)),
	)
}
