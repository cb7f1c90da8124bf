// Package mcp exposes the fragment pipeline over the Model Context Protocol
// (streamable HTTP transport) so assistants can submit transcript fragments
// and read responses as tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/MedScribe/internal/domain/agent"
	"github.com/Strob0t/MedScribe/internal/domain/fragment"
	"github.com/Strob0t/MedScribe/internal/service"
)

// FragmentProcessor submits fragments and reads stored responses.
type FragmentProcessor interface {
	Submit(ctx context.Context, frag fragment.Fragment) (*agent.Response, error)
	GetResponse(ctx context.Context, id string) (*agent.Response, error)
}

// AgentLister reports the configured agents in declaration order.
type AgentLister interface {
	Agents() []service.AgentInfo
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	// Middleware wraps the transport handler, outermost first.
	Middleware []func(http.Handler) http.Handler
}

// ServerDeps are the services the tools call. Nil deps make the matching
// tools report an error result.
type ServerDeps struct {
	Fragments FragmentProcessor
	Agents    AgentLister
}

// Server is the MCP server.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP transport wrapped in the configured
// middleware.
func (s *Server) Handler() http.Handler {
	var h http.Handler = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	for i := len(s.cfg.Middleware) - 1; i >= 0; i-- {
		h = s.cfg.Middleware[i](h)
	}
	return h
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("mcp server started", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down. It is a no-op before Start.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	slog.Info("mcp server stopping")
	return s.httpServer.Shutdown(ctx)
}
