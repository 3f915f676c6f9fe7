// Package llm defines the port to the language model that drives a
// reasoning loop.
package llm

import (
	"context"
	"encoding/json"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry of the conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolSpec advertises a tool to the model.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request is a single model turn.
type Request struct {
	Messages []Message
	Tools    []ToolSpec
}

// Response is the model's reply. A non-empty ToolCalls asks the caller to run
// the tools and continue the conversation.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel completes one turn of a conversation.
type ChatModel interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
