// Package mcpserver provides the stdio MCP server exposing MemoryPilot's
// twenty memory tools to coding agents, grounded on go-ports/echovault's
// internal/mcp server (same mcp-go wiring, generalized from three tools to
// twenty). No business logic lives here: every handler is a thin adapter
// from mcp.CallToolRequest to one service.Service method.
package mcpserver

import (
	"context"
	"fmt"

	mcpgoserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/memorypilot/internal/buildinfo"
	"github.com/go-ports/memorypilot/internal/service"
)

// NewServer creates and registers every memory tool on a new MCP server. It
// is kept separate from Serve so tests can obtain a fully configured server
// without committing to the stdio transport.
func NewServer(svc *service.Service) *mcpgoserver.MCPServer {
	s := mcpgoserver.NewMCPServer("memorypilot", buildinfo.Version)
	registerMemoryTools(s, svc)
	registerContextTools(s, svc)
	registerProjectTools(s, svc)
	registerAdminTools(s, svc)
	return s
}

// Serve starts the stdio MCP server, blocking until stdin closes.
func Serve(_ context.Context, home string) error {
	svc, err := service.New(home)
	if err != nil {
		return fmt.Errorf("mcpserver: init service: %w", err)
	}
	defer svc.Close()

	return mcpgoserver.ServeStdio(NewServer(svc))
}
