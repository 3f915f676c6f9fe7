// Package mcp serves the document corpus over the Model Context Protocol and
// provides a client that turns a remote MCP server's tools into tool.Tool.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"

	cfhttp "github.com/Strob0t/docmesh/internal/adapter/http"
	cfotel "github.com/Strob0t/docmesh/internal/adapter/otel"
	"github.com/Strob0t/docmesh/internal/middleware"
)

// Docs is the rendering the resources and tools share.
type Docs interface {
	ListText(ctx context.Context) (string, error)
	ReadText(ctx context.Context, name string) (string, error)
	SearchText(ctx context.Context, query string) (string, error)
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr      string
	Name      string
	Version   string
	AuthToken string
	// ReadHeaderTimeout bounds request header reads. Zero means 10s.
	ReadHeaderTimeout time.Duration
}

// ServerDeps holds the services the MCP server reads from.
type ServerDeps struct {
	Docs Docs
}

// Server is the document MCP server. One instance serves both the SSE
// transport (/sse + /message) and streamable HTTP (/mcp).
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	sse       *mcpserver.SSEServer
	streaming *mcpserver.StreamableHTTPServer

	mu       sync.Mutex
	httpSrv  *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// NewServer creates an MCP server with all resources and tools registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{cfg: cfg, deps: deps}
	s.mcpServer = mcpserver.NewMCPServer(cfg.Name, cfg.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithRecovery(),
	)
	s.registerResources()
	s.registerTools()

	s.sse = mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithKeepAlive(true))
	s.streaming = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	return s
}

// MCPServer exposes the protocol server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the HTTP surface: the MCP transports behind optional bearer
// auth, plus an unauthenticated /health.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(cfhttp.Logger)
	r.Use(cfhttp.Recoverer)
	r.Use(cfotel.HTTPMiddleware(s.cfg.Name))

	r.Get("/health", cfhttp.Health)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return AuthMiddleware(s.cfg.AuthToken, next) })
		r.Handle("/sse", s.sse.SSEHandler())
		r.Handle("/message", s.sse.MessageHandler())
		r.Handle("/mcp", s.streaming)
	})
	return r
}

// Start binds the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	timeout := s.cfg.ReadHeaderTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	// SSE streams never go idle; cancelling the base context ends them on Stop.
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: timeout,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	s.mu.Lock()
	s.httpSrv = srv
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	slog.Info("mcp server listening", "addr", ln.Addr().String(), "name", s.cfg.Name)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop ends open SSE streams and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.httpSrv, s.cancel
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	cancel()
	return srv.Shutdown(ctx)
}
