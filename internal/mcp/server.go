package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/crm-agent/internal/agent"
	"github.com/ziadkadry99/crm-agent/internal/records"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the interaction agent as tools.
type Server struct {
	pipeline *agent.Pipeline
	records  *records.Store
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(pipeline *agent.Pipeline, store *records.Store) *Server {
	s := &Server{
		pipeline: pipeline,
		records:  store,
	}

	s.mcp = server.NewMCPServer(
		"crmagent",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(logInteractionTool, s.handleLogInteraction)
	s.mcp.AddTool(editInteractionTool, s.handleEditInteraction)
	s.mcp.AddTool(searchHCPTool, s.handleSearchHCP)
	s.mcp.AddTool(sentimentAnalyzerTool, s.handleSentimentAnalyzer)
	s.mcp.AddTool(followupSuggestorTool, s.handleFollowupSuggestor)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
