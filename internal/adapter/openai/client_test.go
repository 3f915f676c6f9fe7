package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/port/llm"
)

type fakeChat struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	return f.resp, f.err
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Options{Model: "m"}); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := New(Options{Client: &fakeChat{}}); err == nil {
		t.Fatal("expected error without model")
	}
}

func TestCompleteEncodesConversation(t *testing.T) {
	fc := &fakeChat{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleAssistant,
			ToolCalls: []openai.ToolCall{{
				ID:       "call_1",
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: "read_doc", Arguments: `{"name":"a.md"}`},
			}},
		},
	}}}}
	c, err := New(Options{Client: fc, Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := c.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "be brief"},
			{Role: llm.RoleUser, Content: "summarize a.md"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c0", Name: "list_docs", Arguments: json.RawMessage(`{}`)}}},
			{Role: llm.RoleTool, ToolCallID: "c0", Content: "a.md"},
		},
		Tools: []llm.ToolSpec{{Name: "read_doc", Description: "read", Parameters: json.RawMessage(`{"type":"object"}`)}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if fc.req.Model != "gpt-4o-mini" || len(fc.req.Messages) != 4 || len(fc.req.Tools) != 1 {
		t.Fatalf("unexpected request %+v", fc.req)
	}
	if fc.req.Messages[2].ToolCalls[0].Function.Name != "list_docs" || fc.req.Messages[3].ToolCallID != "c0" {
		t.Fatalf("tool call history not encoded: %+v", fc.req.Messages)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "read_doc" || string(resp.ToolCalls[0].Arguments) != `{"name":"a.md"}` {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCompleteInvalidArgumentsBecomeEmptyObject(t *testing.T) {
	fc := &fakeChat{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
		Message: openai.ChatCompletionMessage{ToolCalls: []openai.ToolCall{{ID: "c", Function: openai.FunctionCall{Name: "x", Arguments: "{oops"}}}},
	}}}}
	c, _ := New(Options{Client: fc, Model: "m"})

	resp, err := c.Complete(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatal(err)
	}
	if string(resp.ToolCalls[0].Arguments) != `{}` {
		t.Fatalf("expected {}, got %s", resp.ToolCalls[0].Arguments)
	}
}

func TestCompleteErrors(t *testing.T) {
	c, _ := New(Options{Client: &fakeChat{err: errors.New("502")}, Model: "m"})
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}

	if _, err := c.Complete(context.Background(), llm.Request{Messages: msgs}); !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure, got %v", err)
	}
	if _, err := c.Complete(context.Background(), llm.Request{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty messages, got %v", err)
	}

	empty, _ := New(Options{Client: &fakeChat{}, Model: "m"})
	if _, err := empty.Complete(context.Background(), llm.Request{Messages: msgs}); !errors.Is(err, domain.ErrUpstreamFailure) {
		t.Fatalf("expected ErrUpstreamFailure for no choices, got %v", err)
	}
}

func TestNewFromURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer ts.Close()

	c, err := NewFromURL(ts.URL+"/", "sk-test", "gpt-4o-mini", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Complete(context.Background(), llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello" {
		t.Fatalf("expected hello, got %q", resp.Content)
	}
}
