package mcp

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Tool names served by the document server.
const (
	ToolListDocs   = "list_docs"
	ToolReadDoc    = "read_doc"
	ToolSearchDocs = "search_docs"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listDocsTool(),
		s.readDocTool(),
		s.searchDocsTool(),
	)
}

func (s *Server) listDocsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolListDocs,
		mcplib.WithDescription("List the names of all available documents, one per line."),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListDocs,
	}
}

func (s *Server) readDocTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolReadDoc,
		mcplib.WithDescription("Return the full text of one document."),
		mcplib.WithString("name",
			mcplib.Required(),
			mcplib.Description("Document name as returned by list_docs, e.g. intro.md"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleReadDoc,
	}
}

func (s *Server) searchDocsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool(ToolSearchDocs,
		mcplib.WithDescription("Case-insensitive search across all documents. Returns matching lines grouped by document with line numbers."),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description("Text to look for"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleSearchDocs,
	}
}

//nolint:gocritic // hugeParam: signature required by mcp-go ToolHandlerFunc
func (s *Server) handleListDocs(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.deps.Docs == nil {
		return mcplib.NewToolResultError("document service not configured"), nil
	}
	text, err := s.deps.Docs.ListText(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("list_docs failed", err), nil
	}
	return mcplib.NewToolResultText(text), nil
}

//nolint:gocritic // hugeParam: signature required by mcp-go ToolHandlerFunc
func (s *Server) handleReadDoc(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.deps.Docs == nil {
		return mcplib.NewToolResultError("document service not configured"), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	text, err := s.deps.Docs.ReadText(ctx, name)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("read_doc failed", err), nil
	}
	return mcplib.NewToolResultText(text), nil
}

//nolint:gocritic // hugeParam: signature required by mcp-go ToolHandlerFunc
func (s *Server) handleSearchDocs(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	if s.deps.Docs == nil {
		return mcplib.NewToolResultError("document service not configured"), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}
	text, err := s.deps.Docs.SearchText(ctx, query)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("search_docs failed", err), nil
	}
	return mcplib.NewToolResultText(text), nil
}
