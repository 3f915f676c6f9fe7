package service

import (
	"context"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/Strob0t/docmesh/internal/domain/task"
	"github.com/Strob0t/docmesh/internal/port/tool"
)

// SkillRunner executes a validated task for one of the agent's skills.
type SkillRunner interface {
	RunSkill(ctx context.Context, skill a2a.AgentSkill, req *task.Request) (string, error)
}

// ReasoningAgent answers every skill with one reasoning run over a fixed
// tool set, e.g. the document tools of an MCP server.
type ReasoningAgent struct {
	reasoner     *Reasoner
	instructions string
	tools        tool.Set
}

// NewReasoningAgent creates a ReasoningAgent.
func NewReasoningAgent(reasoner *Reasoner, instructions string, tools tool.Set) *ReasoningAgent {
	return &ReasoningAgent{reasoner: reasoner, instructions: instructions, tools: tools}
}

// RunSkill implements SkillRunner. Structured input is passed to the model
// as its JSON text.
func (a *ReasoningAgent) RunSkill(ctx context.Context, _ a2a.AgentSkill, req *task.Request) (string, error) {
	input := req.Input.Text
	if input == "" {
		input = string(req.Input.Data)
	}
	return a.reasoner.Run(ctx, a.instructions, input, a.tools)
}

// Tools returns the names of the tools available to the agent.
func (a *ReasoningAgent) Tools() []string {
	names := make([]string, 0, len(a.tools))
	for _, s := range toolSpecs(a.tools) {
		names = append(names, s.Name)
	}
	return names
}
