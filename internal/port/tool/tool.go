// Package tool defines the invokable capability shared by local tools, MCP
// tools and tools synthesized from discovered agent skills.
package tool

import (
	"context"
	"encoding/json"
)

// Tool is a named operation with a declared input shape and one entry point.
// Callers cannot tell where a Tool is implemented.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the arguments object.
	Parameters() json.RawMessage
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Set indexes tools by name.
type Set map[string]Tool

// NewSet builds a Set. Later tools with a duplicate name are ignored and
// reported in the second return value.
func NewSet(tools ...Tool) (Set, []string) {
	s := make(Set, len(tools))
	var dup []string
	for _, t := range tools {
		if _, ok := s[t.Name()]; ok {
			dup = append(dup, t.Name())
			continue
		}
		s[t.Name()] = t
	}
	return s, dup
}

// TextInputSchema is the schema of a tool taking a single "input" string.
var TextInputSchema = json.RawMessage(`{"type":"object","properties":{"input":{"type":"string","description":"Request for the agent, in plain text."}},"required":["input"]}`)
