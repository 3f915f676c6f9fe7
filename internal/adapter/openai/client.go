// Package openai implements the llm.ChatModel port over an OpenAI-compatible
// chat completions endpoint (LiteLLM in the default deployment).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/port/llm"
)

// ChatClient is the subset of the go-openai client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Options configures a Client.
type Options struct {
	Client      ChatClient
	Model       string
	Temperature float32
}

// Client is a ChatModel backed by a chat completions API.
type Client struct {
	chat        ChatClient
	model       string
	temperature float32
}

// New builds a Client from an existing chat client.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	return &Client{chat: opts.Client, model: opts.Model, temperature: opts.Temperature}, nil
}

// NewFromURL targets an OpenAI-compatible base URL such as a LiteLLM proxy.
// The "/v1" suffix is added when missing.
func NewFromURL(baseURL, apiKey, model string, temperature float32, hc *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base url is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(cfg.BaseURL, "/v1") {
		cfg.BaseURL += "/v1"
	}
	if hc != nil {
		cfg.HTTPClient = hc
	}
	return New(Options{Client: openai.NewClientWithConfig(cfg), Model: model, Temperature: temperature})
}

// Complete runs one chat turn. Request failures wrap domain.ErrUpstreamFailure
// unless the context expired, which wraps domain.ErrTimeout.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if len(req.Messages) == 0 {
		return llm.Response{}, fmt.Errorf("%w: messages are required", domain.ErrValidation)
	}
	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    encodeMessages(req.Messages),
		Temperature: c.temperature,
		Tools:       encodeTools(req.Tools),
	}

	response, err := c.chat.CreateChatCompletion(ctx, request)
	if err != nil {
		if ctx.Err() != nil {
			return llm.Response{}, fmt.Errorf("%w: chat completion: %w", domain.ErrTimeout, err)
		}
		return llm.Response{}, fmt.Errorf("%w: chat completion: %w", domain.ErrUpstreamFailure, err)
	}
	if len(response.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("%w: chat completion returned no choices", domain.ErrUpstreamFailure)
	}
	return translateResponse(&response.Choices[0].Message), nil
}

func encodeMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func encodeTools(specs []llm.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		params := s.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func translateResponse(msg *openai.ChatCompletionMessage) llm.Response {
	resp := llm.Response{Content: msg.Content}
	for _, call := range msg.ToolCalls {
		args := json.RawMessage(call.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return resp
}
