// Package task defines the task invocation protocol exchanged between an
// orchestrator and an agent server.
package task

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/docmesh/internal/domain"
)

// DefaultSkill selects the only skill of a single-skill agent.
const DefaultSkill = "default"

// Status is the terminal outcome reported in a Result.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
)

// State is a step of the per-task state machine on the agent server.
type State string

const (
	StateReceived  State = "received"
	StateValidated State = "validated"
	StateExecuting State = "executing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateRejected  State = "rejected"
)

var transitions = map[State][]State{
	StateReceived:  {StateValidated, StateRejected},
	StateValidated: {StateExecuting, StateFailed},
	StateExecuting: {StateCompleted, StateFailed},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Input is the task payload. Text is used for text/plain agents; Data carries
// structured content for agents that declare other input modes.
type Input struct {
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Empty reports whether the input carries no content.
func (i Input) Empty() bool {
	return i.Text == "" && len(i.Data) == 0
}

// Request is a task invocation. ID is the correlation id and Skill the skill
// id; on the wire they are correlation_id and skill_id.
type Request struct {
	ID      string         `json:"correlation_id"`
	Skill   string         `json:"skill_id"`
	Input   Input          `json:"input"`
	Context map[string]any `json:"context,omitempty"` //nolint:gosec // free-form caller metadata
}

// Output is the payload of a completed task.
type Output struct {
	Text string `json:"text"`
}

// Error is the error detail of a failed or rejected task.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of a task. ID must equal the originating Request.ID.
type Result struct {
	ID     string  `json:"correlation_id"`
	Status Status  `json:"status"`
	Output *Output `json:"output,omitempty"`
	Error  *Error  `json:"error,omitempty"`
}

// Validate checks the structural fields of a request.
func (r *Request) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", domain.ErrMalformed)
	}
	if r.Input.Empty() {
		return fmt.Errorf("%w: input is required", domain.ErrMalformed)
	}
	return nil
}

// Completed builds a completed result.
func Completed(id, text string) Result {
	return Result{ID: id, Status: StatusCompleted, Output: &Output{Text: text}}
}

// Failed builds a failed result from err.
func Failed(id string, err error) Result {
	return Result{ID: id, Status: StatusFailed, Error: &Error{Code: domain.Code(err), Message: err.Error()}}
}

// Rejected builds a rejected result from err.
func Rejected(id string, err error) Result {
	return Result{ID: id, Status: StatusRejected, Error: &Error{Code: domain.Code(err), Message: err.Error()}}
}

// Err converts a non-completed result into an error wrapping the sentinel of
// its code. It returns nil for completed results.
func (r *Result) Err() error {
	if r.Status == StatusCompleted {
		return nil
	}
	if r.Error == nil {
		return fmt.Errorf("%w: task %s %s without detail", domain.ErrUpstreamFailure, r.ID, r.Status)
	}
	return fmt.Errorf("%w: %s", domain.FromCode(r.Error.Code), r.Error.Message)
}
