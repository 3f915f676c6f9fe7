package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/docmesh/internal/domain"
	"github.com/Strob0t/docmesh/internal/port/tool"
)

// ClientConfig configures a connection to a remote MCP server over SSE.
type ClientConfig struct {
	// URL is the SSE endpoint, e.g. http://localhost:8000/sse.
	URL string
	// Token is sent as a bearer token on every request when set.
	Token      string
	HTTPClient *http.Client
	Name       string
	Version    string
}

// Client is an initialized session with a remote MCP server. It is safe for
// concurrent use; calls are multiplexed over the one SSE stream.
type Client struct {
	url    string
	client *mcpclient.Client
}

// Dial opens the SSE stream and performs the initialize handshake. The
// stream outlives ctx; ctx only bounds the handshake. Connection failures
// wrap domain.ErrUnreachable.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	var opts []transport.ClientOption
	if cfg.Token != "" {
		opts = append(opts, mcpclient.WithHeaders(map[string]string{"Authorization": "Bearer " + cfg.Token}))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, mcpclient.WithHTTPClient(cfg.HTTPClient))
	}
	c, err := mcpclient.NewSSEMCPClient(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: mcp client %s: %w", domain.ErrUnreachable, cfg.URL, err)
	}
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: mcp connect %s: %w", domain.ErrUnreachable, cfg.URL, err)
	}

	name := cfg.Name
	if name == "" {
		name = "docmesh"
	}
	initReq := mcplib.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcplib.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcplib.Implementation{Name: name, Version: cfg.Version}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: mcp initialize %s: %w", domain.ErrUnreachable, cfg.URL, err)
	}
	return &Client{url: cfg.URL, client: c}, nil
}

// Tools lists the remote tools wrapped as tool.Tool.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	res, err := c.client.ListTools(ctx, mcplib.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: mcp list tools %s: %w", domain.ErrUnreachable, c.url, err)
	}
	tools := make([]tool.Tool, 0, len(res.Tools))
	for i := range res.Tools {
		t := &res.Tools[i]
		schema := t.RawInputSchema
		if len(schema) == 0 {
			schema, err = json.Marshal(t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("%w: tool %s schema: %w", domain.ErrMalformed, t.Name, err)
			}
		}
		tools = append(tools, &remoteTool{client: c, name: t.Name, description: t.Description, schema: schema})
	}
	return tools, nil
}

// CallTool invokes a remote tool and returns its text output. A result
// flagged as an error wraps domain.ErrUpstreamFailure.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	req := mcplib.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: mcp call %s: %w", domain.ErrUnreachable, name, err)
	}
	text := joinText(res.Content)
	if res.IsError {
		return "", fmt.Errorf("%w: tool %s: %s", domain.ErrUpstreamFailure, name, text)
	}
	return text, nil
}

// ReadResource returns the text of a resource.
func (c *Client) ReadResource(ctx context.Context, uri string) (string, error) {
	req := mcplib.ReadResourceRequest{}
	req.Params.URI = uri
	res, err := c.client.ReadResource(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: mcp read %s: %w", domain.ErrUnreachable, uri, err)
	}
	var parts []string
	for _, rc := range res.Contents {
		if t, ok := rc.(mcplib.TextResourceContents); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.client.Close()
}

func joinText(content []mcplib.Content) string {
	var parts []string
	for _, item := range content {
		if t, ok := item.(mcplib.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type remoteTool struct {
	client      *Client
	name        string
	description string
	schema      json.RawMessage
}

func (t *remoteTool) Name() string                { return t.name }
func (t *remoteTool) Description() string         { return t.description }
func (t *remoteTool) Parameters() json.RawMessage { return t.schema }

func (t *remoteTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	params := map[string]any{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", fmt.Errorf("%w: arguments for %s: %w", domain.ErrMalformed, t.name, err)
		}
	}
	return t.client.CallTool(ctx, t.name, params)
}
