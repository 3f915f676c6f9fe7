package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/docmesh/internal/adapter/otel"
	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/logger"
	"github.com/Strob0t/docmesh/internal/port/llm"
	"github.com/Strob0t/docmesh/internal/port/tool"
)

// DefaultMaxSteps bounds model turns per reasoning run.
const DefaultMaxSteps = 8

// Reasoner runs a bounded tool-calling loop against a chat model. Tool
// calls of one model turn run in order; a failing tool is reported to the
// model as "error: <message>" and the loop continues.
type Reasoner struct {
	model    llm.ChatModel
	maxSteps int
	metrics  *cfotel.Metrics
}

// NewReasoner creates a Reasoner. maxSteps <= 0 means DefaultMaxSteps.
func NewReasoner(model llm.ChatModel, maxSteps int) *Reasoner {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Reasoner{model: model, maxSteps: maxSteps, metrics: cfotel.MustMetrics()}
}

// Run answers input under instructions, calling only tools from set.
// Exceeding the step budget wraps domain.ErrUpstreamFailure.
func (r *Reasoner) Run(ctx context.Context, instructions, input string, set tool.Set) (string, error) {
	msgs := make([]llm.Message, 0, 4)
	if instructions != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: instructions})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: input})
	specs := toolSpecs(set)
	log := logger.From(ctx)

	for step := 1; step <= r.maxSteps; step++ {
		resp, err := r.model.Complete(ctx, llm.Request{Messages: msgs, Tools: specs})
		if err != nil {
			if errors.Is(err, domain.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: model turn %d: %w", domain.ErrTimeout, step, err)
			}
			return "", fmt.Errorf("%w: model turn %d: %w", domain.ErrUpstreamFailure, step, err)
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			out := r.callTool(ctx, set, call)
			log.Debug("tool call", "step", step, "tool", call.Name, "call_id", call.ID)
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: out})
		}
	}
	return "", fmt.Errorf("%w: no answer after %d steps", domain.ErrUpstreamFailure, r.maxSteps)
}

func (r *Reasoner) callTool(ctx context.Context, set tool.Set, call llm.ToolCall) string {
	ctx, span := cfotel.StartToolCallSpan(ctx, call.ID, call.Name)
	defer span.End()

	t, ok := set[call.Name]
	if !ok {
		span.SetStatus(codes.Error, "unknown tool")
		r.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", call.Name), attribute.String("outcome", "unknown")))
		return fmt.Sprintf("error: unknown tool %q", call.Name)
	}
	out, err := t.Invoke(ctx, call.Arguments)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", call.Name), attribute.String("outcome", domain.Code(err))))
		logger.From(ctx).Warn("tool call failed", "tool", call.Name, "error", err)
		return "error: " + err.Error()
	}
	r.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", call.Name), attribute.String("outcome", "ok")))
	return out
}

func toolSpecs(set tool.Set) []llm.ToolSpec {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.Sort(names)
	specs := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		t := set[name]
		specs = append(specs, llm.ToolSpec{Name: name, Description: t.Description(), Parameters: t.Parameters()})
	}
	return specs
}
