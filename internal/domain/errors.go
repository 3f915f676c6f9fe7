// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested document does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidQuery indicates an empty or whitespace-only search term.
var ErrInvalidQuery = errors.New("invalid query")

// ErrUnknownSkill indicates a task references a skill the agent does not declare.
var ErrUnknownSkill = errors.New("unknown skill")

// ErrUnreachable indicates a descriptor fetch or task dispatch could not reach its target.
var ErrUnreachable = errors.New("unreachable")

// ErrMalformed indicates a descriptor or task payload failed structural validation.
var ErrMalformed = errors.New("malformed")

// ErrTimeout indicates a bounded wait elapsed.
var ErrTimeout = errors.New("timeout")

// ErrUpstreamFailure indicates the agent's reasoning or tool step faulted.
var ErrUpstreamFailure = errors.New("upstream failure")

// ErrValidation indicates invalid configuration or input.
var ErrValidation = errors.New("validation error")

// ErrConflict indicates two things claim the same identity (tool name, task id).
var ErrConflict = errors.New("conflict")

// Wire codes carried in task results.
const (
	CodeNotFound        = "not_found"
	CodeInvalidQuery    = "invalid_query"
	CodeUnknownSkill    = "unknown_skill"
	CodeUnreachable     = "unreachable"
	CodeMalformed       = "malformed"
	CodeTimeout         = "timeout"
	CodeUpstreamFailure = "upstream_failure"
	CodeConflict        = "conflict"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, CodeNotFound},
	{ErrInvalidQuery, CodeInvalidQuery},
	{ErrUnknownSkill, CodeUnknownSkill},
	{ErrUnreachable, CodeUnreachable},
	{ErrMalformed, CodeMalformed},
	{ErrTimeout, CodeTimeout},
	{ErrConflict, CodeConflict},
	{ErrValidation, CodeMalformed},
	{ErrUpstreamFailure, CodeUpstreamFailure},
}

// Code returns the wire code for err. Errors outside the taxonomy map to
// upstream_failure.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUpstreamFailure
}

// FromCode returns the sentinel for a wire code. Unknown codes map to
// ErrUpstreamFailure.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return ErrUpstreamFailure
}
