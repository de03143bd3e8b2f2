// Package mcpserver exposes the memory engine as a Model Context Protocol
// tool surface for conversational agents.
package mcpserver

import (
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/memvault/memvault/pkg/engine"
	"github.com/memvault/memvault/pkg/log"
)

// Server wraps an MCP server around the memory engine.
type Server struct {
	mcpServer *mcpserver.MCPServer
	engine    *engine.Engine

	// defaultNamespace applies when a tool call gives no namespace
	defaultNamespace string
}

// NewServer creates the MCP server and registers the memory tools.
func NewServer(name, version string, eng *engine.Engine, defaultNamespace string) *Server {
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(name, version,
			mcpserver.WithToolCapabilities(false),
		),
		engine:           eng,
		defaultNamespace: defaultNamespace,
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying MCP server, mainly for tests.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	log.Info("Serving MCP over stdio", "default_namespace", s.defaultNamespace)
	return mcpserver.ServeStdio(s.mcpServer)
}

// ServeHTTP serves MCP over streamable HTTP on addr.
func (s *Server) ServeHTTP(addr string) error {
	log.Info("Serving MCP over HTTP", "addr", addr, "default_namespace", s.defaultNamespace)
	return mcpserver.NewStreamableHTTPServer(s.mcpServer).Start(addr)
}
