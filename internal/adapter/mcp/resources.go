package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// Resource addresses served by the document server.
const (
	ResourceList     = "docs://list"
	ResourceTemplate = "docs://{name}"
	resourceScheme   = "docs://"
)

// registerResources registers all MCP resources on the server. Static
// resources match before templates, so docs://list never reaches the
// per-document handler.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			ResourceList,
			"Document List",
			mcplib.WithResourceDescription("Names of all documents, one per line"),
			mcplib.WithMIMEType("text/plain"),
		),
		s.handleListResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			ResourceTemplate,
			"Document",
			mcplib.WithTemplateDescription("Full text of one document"),
			mcplib.WithTemplateMIMEType("text/plain"),
		),
		s.handleDocResource,
	)
}

//nolint:gocritic // hugeParam: signature required by mcp-go ResourceHandlerFunc
func (s *Server) handleListResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Docs == nil {
		return nil, fmt.Errorf("document service not configured")
	}
	text, err := s.deps.Docs.ListText(ctx)
	if err != nil {
		return nil, err
	}
	return textContents(req.Params.URI, text), nil
}

//nolint:gocritic // hugeParam: signature required by mcp-go ResourceTemplateHandlerFunc
func (s *Server) handleDocResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Docs == nil {
		return nil, fmt.Errorf("document service not configured")
	}
	text, err := s.deps.Docs.ReadText(ctx, templateName(req))
	if err != nil {
		return nil, err
	}
	return textContents(req.Params.URI, text), nil
}

// templateName extracts {name} from a docs:// URI. mcp-go passes matched
// template variables as []string.
func templateName(req mcplib.ReadResourceRequest) string { //nolint:gocritic // hugeParam
	switch v := req.Params.Arguments["name"].(type) {
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case string:
		return v
	}
	return strings.TrimPrefix(req.Params.URI, resourceScheme)
}

func textContents(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     text,
		},
	}
}
