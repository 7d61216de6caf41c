package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpgoserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/memorypilot/internal/service"
)

func registerContextTools(s *mcpgoserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("recall",
		mcp.WithDescription("One-shot session context bundle: the working project's brain, cross-project preferences, and the global prompt file. Call this at the start of a session."),
		mcp.WithString("working_dir", mcp.Description("Current working directory, used to auto-detect the project.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRecall(svc, req)
	})

	s.AddTool(mcp.NewTool("get_project_brain",
		mcp.WithDescription("Fetch the bounded-token aggregation (tech stack, architecture, active bugs, recent changes, preferences, key components) for one project."),
		mcp.WithString("project", mcp.Description("Project name; empty for the global (no-project) brain.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetProjectBrain(svc, req)
	})

	s.AddTool(mcp.NewTool("get_project_context",
		mcp.WithDescription("Like recall, but with an explicit project name that takes priority over working_dir auto-detection."),
		mcp.WithString("project", mcp.Description("Project name; wins over working_dir when set.")),
		mcp.WithString("working_dir", mcp.Description("Fallback for project auto-detection when project is empty.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetProjectContext(svc, req)
	})

	s.AddTool(mcp.NewTool("get_file_context",
		mcp.WithDescription("Derive boost keywords from a file's name and surface the memories those keywords match, scoped to the project detected from working_dir."),
		mcp.WithString("file_path", mcp.Description("Path or name of the file being edited."), mcp.Required()),
		mcp.WithString("working_dir", mcp.Description("Current working directory, used for project auto-detection.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetFileContext(svc, req)
	})
}

func handleRecall(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := svc.Recall(req.GetString("working_dir", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(doc)
}

func handleGetProjectBrain(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := svc.GetProjectBrain(req.GetString("project", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(b)
}

func handleGetProjectContext(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := svc.GetProjectContext(req.GetString("project", ""), req.GetString("working_dir", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(doc)
}

func handleGetFileContext(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fc, err := svc.GetFileContext(req.GetString("file_path", ""), req.GetString("working_dir", ""))
	if err != nil {
		return errResult(err)
	}

	matches := make([]map[string]any, len(fc.Matches))
	for i, r := range fc.Matches {
		entry := memoryToMap(r.Memory)
		entry["score"] = r.Score
		matches[i] = entry
	}

	return jsonResult(map[string]any{
		"file_path": fc.FilePath,
		"keywords":  fc.Keywords,
		"project":   fc.Project,
		"matches":   matches,
	})
}
