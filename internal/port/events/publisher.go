// Package events defines the port for task lifecycle events.
package events

import (
	"context"
	"time"
)

// SubjectPrefix prefixes every task event subject; the suffix is the state.
const SubjectPrefix = "docmesh.tasks."

// TaskEvent records one state change of a task on an agent server.
type TaskEvent struct {
	TaskID     string    `json:"task_id"`
	Agent      string    `json:"agent"`
	Skill      string    `json:"skill,omitempty"`
	State      string    `json:"state"`
	Code       string    `json:"code,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Time       time.Time `json:"time"`
}

// Subject returns the subject the event is published on.
func (e *TaskEvent) Subject() string { return SubjectPrefix + e.State }

// Publisher sends an event payload to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, subject string, data []byte) error

// Subscriber delivers events matching subject to handler until the returned
// stop function is called.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler Handler) (stop func(), err error)
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, []byte) error { return nil }
