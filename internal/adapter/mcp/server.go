// Package mcp exposes the batch analyzer as Model Context Protocol tools
// served over streamable HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/DomainLens/internal/domain/batch"
)

const defaultSyncTimeout = 5 * time.Minute

// BatchRunner is the subset of the batch service the tools call.
type BatchRunner interface {
	Submit(ctx context.Context, domains []string) (*batch.Task, error)
	Analyze(ctx context.Context, domains []string) (*batch.Task, error)
	Get(ctx context.Context, id string) (*batch.Task, error)
	Cancel(ctx context.Context, id string) error
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Name    string
	Version string
	// SyncTimeout bounds analyze_domains. After it the tool returns the
	// task id and the batch keeps running.
	SyncTimeout time.Duration
}

// ServerDeps holds the services the tools read from.
type ServerDeps struct {
	Batches BatchRunner
}

// Server wraps an MCP server with the DomainLens tools and resources.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	http      *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server and registers tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaultSyncTimeout
	}
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
	s.http = mcpserver.NewStreamableHTTPServer(s.mcpServer, mcpserver.WithStateLess(true))
	return s
}

// MCPServer returns the underlying server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable-HTTP endpoint.
func (s *Server) Handler() http.Handler {
	return s.http
}

// Shutdown closes open streaming sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func toolResultJSON(v any) *mcplib.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err)
	}
	return mcplib.NewToolResultText(string(data))
}
