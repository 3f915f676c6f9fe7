package ws

import (
	"encoding/json"
	"fmt"

	"github.com/Strob0t/docmesh/internal/domain"
)

// Message types exchanged on a task session.
const (
	// TypeTask carries a task.Request from client to server.
	TypeTask = "task"
	// TypeResult carries a task.Result from server to client.
	TypeResult = "result"
	// TypeError reports a frame the server could not attribute to a task.
	TypeError = "error"
)

// ErrorPayload is the payload of a TypeError message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(typ string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Message{Type: typ, Payload: data}, nil
}

func errorMessage(err error) Message {
	data, _ := json.Marshal(ErrorPayload{Code: domain.Code(err), Message: err.Error()})
	return Message{Type: TypeError, Payload: data}
}
