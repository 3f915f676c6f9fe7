package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/logger"
	"github.com/Strob0t/docmesh/internal/port/tool"
)

// DegradedAnswerFormat is the answer given when the reasoning loop fails.
const DegradedAnswerFormat = "I could not reach that capability right now (%s)."

// ToolSource supplies the tools currently bound for the orchestrator.
type ToolSource interface {
	Tools() tool.Set
}

// Orchestrator answers user questions, delegating to discovered agents
// through their tools. The model itself is the direct-answer capability.
type Orchestrator struct {
	reasoner     *Reasoner
	tools        ToolSource
	instructions string
	timeout      time.Duration
}

// NewOrchestrator creates an Orchestrator. A zero timeout leaves each answer
// bounded only by the caller's context.
func NewOrchestrator(reasoner *Reasoner, tools ToolSource, instructions string, timeout time.Duration) *Orchestrator {
	return &Orchestrator{reasoner: reasoner, tools: tools, instructions: instructions, timeout: timeout}
}

// Answer returns the reply to question. It never returns an error: failures
// become a degraded answer naming the error code; the full error is logged.
func (o *Orchestrator) Answer(ctx context.Context, question string) string {
	ctx = logger.WithRequestID(ctx, uuid.NewString())
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	out, err := o.reasoner.Run(ctx, o.instructions, question, o.tools.Tools())
	if err != nil {
		logger.From(ctx).Warn("orchestrator degraded", "error", err)
		return fmt.Sprintf(DegradedAnswerFormat, strings.ReplaceAll(domain.Code(err), "_", " "))
	}
	return out
}
