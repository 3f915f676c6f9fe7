// Package a2aclient fetches agent cards and sends tasks to agent servers.
package a2aclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	cfotel "github.com/Strob0t/docmesh/internal/adapter/otel"
	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/domain/agentcard"
	"github.com/Strob0t/docmesh/internal/domain/task"
)

// maxResponseBytes caps card and result bodies.
const maxResponseBytes = 4 << 20

// CallError is a task that reached the agent but did not complete. It
// unwraps to the sentinel of its wire code.
type CallError struct {
	Endpoint string
	Code     string
	Message  string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("agent %s: %s: %s", e.Endpoint, e.Code, e.Message)
}

func (e *CallError) Unwrap() error {
	return domain.FromCode(e.Code)
}

// ResultError converts a non-completed result into a *CallError.
func ResultError(endpoint string, res *task.Result) error {
	if res.Status == task.StatusCompleted {
		return nil
	}
	ce := &CallError{Endpoint: endpoint, Code: domain.CodeUpstreamFailure, Message: string(res.Status)}
	if res.Error != nil {
		ce.Code = res.Error.Code
		ce.Message = res.Error.Message
	}
	return ce
}

// Client talks to agent servers over HTTP.
type Client struct {
	http  *http.Client
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Timeouts come from the contexts
// passed to each call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBearerToken sends token on every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client. The default transport is traced.
func New(opts ...Option) *Client {
	c := &Client{http: &http.Client{Transport: cfotel.HTTPTransport(http.DefaultTransport)}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CardURL returns the well-known card address of an agent base URL.
func CardURL(base string) (string, error) {
	return url.JoinPath(base, agentcard.WellKnownPath)
}

// TaskURL returns the task endpoint for a card URL.
func TaskURL(cardURL string) (string, error) {
	return url.JoinPath(cardURL, "a2a", "tasks")
}

// FetchCard retrieves and validates the card published under base.
func (c *Client) FetchCard(ctx context.Context, base string) (*a2a.AgentCard, error) {
	u, err := CardURL(base)
	if err != nil {
		return nil, fmt.Errorf("%w: agent url %q: %w", domain.ErrValidation, base, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: agent url %q: %w", domain.ErrValidation, base, err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var card a2a.AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("%w: agent card %s: %w", domain.ErrMalformed, u, err)
	}
	if err := agentcard.Validate(&card); err != nil {
		return nil, fmt.Errorf("agent card %s: %w", u, err)
	}
	return &card, nil
}

// SendTask posts req to endpoint and returns the agent's result. Errors cover
// transport faults and malformed replies; a delivered failed or rejected
// result is returned as a result, see ResultError.
func (c *Client) SendTask(ctx context.Context, endpoint string, req *task.Request) (task.Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return task.Result{}, fmt.Errorf("%w: encode task %s: %w", domain.ErrMalformed, req.ID, err)
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return task.Result{}, fmt.Errorf("%w: task endpoint %q: %w", domain.ErrValidation, endpoint, err)
	}
	hr.Header.Set("Content-Type", "application/json")
	hr.Header.Set("Accept", "application/json")

	body, err := c.do(hr, http.StatusOK)
	if err != nil {
		return task.Result{}, err
	}
	var res task.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return task.Result{}, fmt.Errorf("%w: task %s result: %w", domain.ErrMalformed, req.ID, err)
	}
	if err := checkResult(req.ID, &res); err != nil {
		return task.Result{}, err
	}
	return res, nil
}

func checkResult(id string, res *task.Result) error {
	if res.ID != id {
		return fmt.Errorf("%w: result id %q does not match task %q", domain.ErrMalformed, res.ID, id)
	}
	switch res.Status {
	case task.StatusCompleted:
		if res.Output == nil {
			return fmt.Errorf("%w: task %s completed without output", domain.ErrMalformed, id)
		}
	case task.StatusFailed, task.StatusRejected:
	default:
		return fmt.Errorf("%w: task %s has unknown status %q", domain.ErrMalformed, id, res.Status)
	}
	return nil
}

func (c *Client) do(req *http.Request, want int) ([]byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(req.URL.String(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(req.URL.String(), err)
	}
	if resp.StatusCode != want {
		return nil, statusError(req.URL.String(), resp.StatusCode, body)
	}
	return body, nil
}

func transportError(endpoint string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s: %w", domain.ErrTimeout, endpoint, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrUnreachable, endpoint, err)
}

func statusError(endpoint string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var er struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		msg = er.Error
	}
	switch {
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s: HTTP %d: %s", domain.ErrMalformed, endpoint, status, msg)
	case status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s: HTTP %d", domain.ErrTimeout, endpoint, status)
	default:
		return fmt.Errorf("%w: %s: HTTP %d: %s", domain.ErrUnreachable, endpoint, status, msg)
	}
}
