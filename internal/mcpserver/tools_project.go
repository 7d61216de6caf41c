package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpgoserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/memorypilot/internal/service"
)

func registerProjectTools(s *mcpgoserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("register_project",
		mcp.WithDescription("Register or update a project's working-directory path and description, enabling working_dir-based auto-detection for search, recall, and the file watcher."),
		mcp.WithString("name", mcp.Description("Project name."), mcp.Required()),
		mcp.WithString("path", mcp.Description("Absolute path to the project's working directory."), mcp.Required()),
		mcp.WithString("description", mcp.Description("Short human-readable description.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRegisterProject(svc, req)
	})

	s.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List every registered project."),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListProjects(svc, req)
	})

	s.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Corpus-wide counts: total memories by kind and project, expired count, link count, and database size."),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetStats(svc, req)
	})

	s.AddTool(mcp.NewTool("get_global_prompt",
		mcp.WithDescription("Return the contents of GLOBAL_PROMPT.md, or an empty string if it hasn't been written yet."),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetGlobalPrompt(svc, req)
	})

	s.AddTool(mcp.NewTool("set_config",
		mcp.WithDescription("Set a persisted configuration key/value pair (e.g. gc.age_days, gc.importance_threshold)."),
		mcp.WithString("key", mcp.Required()),
		mcp.WithString("value", mcp.Required()),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSetConfig(svc, req)
	})
}

func handleRegisterProject(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	path := req.GetString("path", "")
	description := req.GetString("description", "")
	if err := svc.RegisterProject(name, path, description); err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"registered": name})
}

func handleListProjects(svc *service.Service, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := svc.ListProjects()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(projects)
}

func handleGetStats(svc *service.Service, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := svc.GetStats()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(stats)
}

func handleGetGlobalPrompt(svc *service.Service, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := svc.GetGlobalPrompt()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"global_prompt": prompt})
}

func handleSetConfig(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := req.GetString("key", "")
	value := req.GetString("value", "")
	if err := svc.SetConfig(key, value); err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"key": key, "value": value})
}

