package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpgoserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/memorypilot/internal/gc"
	"github.com/go-ports/memorypilot/internal/service"
	"github.com/go-ports/memorypilot/internal/storage"
)

func registerAdminTools(s *mcpgoserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("export_memories",
		mcp.WithDescription("Export memories matching a filter as JSON or Markdown."),
		mcp.WithString("format", mcp.Description("\"json\" or \"markdown\"; defaults to json."), mcp.Enum("json", "markdown")),
		mcp.WithString("project", mcp.Description("Filter to one project.")),
		mcp.WithArray("kinds", mcp.Description("Filter to these kinds."), mcp.WithStringItems()),
		mcp.WithBoolean("include_expired", mcp.Description("Include expired memories.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleExportMemories(svc, req)
	})

	s.AddTool(mcp.NewTool("run_gc",
		mcp.WithDescription("Run one garbage-collection pass: stale-memory clustering and merge, orphan entity/link cleanup, and vacuum-based compaction."),
		mcp.WithNumber("age_days", mcp.Description("Staleness age threshold in days; defaults to the persisted config value.")),
		mcp.WithNumber("importance_threshold", mcp.Description("Memories at or above this importance are never clustered; defaults to the persisted config value.")),
		mcp.WithBoolean("dry_run", mcp.Description("Report what would change without writing anything.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRunGC(svc, req)
	})

	s.AddTool(mcp.NewTool("cleanup_expired",
		mcp.WithDescription("Delete every expired memory outright, bypassing the garbage collector's demotion-first behavior."),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCleanupExpired(svc, req)
	})

	s.AddTool(mcp.NewTool("migrate_v1",
		mcp.WithDescription("Import a legacy V1 JSON export, deduping against anything already stored."),
		mcp.WithString("path", mcp.Description("Path to the V1 JSON export file."), mcp.Required()),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleMigrateV1(svc, req)
	})
}

func handleExportMemories(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "json")
	filter := storage.ListFilter{
		Project:        req.GetString("project", ""),
		Kinds:          toKinds(req.GetStringSlice("kinds", nil)),
		IncludeExpired: req.GetBool("include_expired", false),
	}
	out, err := svc.ExportMemories(format, filter)
	if err != nil {
		return errResult(err)
	}
	return mcp.NewToolResultText(out), nil
}

func handleRunGC(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := gc.Config{
		AgeDays:             req.GetInt("age_days", 0),
		ImportanceThreshold: req.GetInt("importance_threshold", 0),
		DryRun:              req.GetBool("dry_run", false),
	}
	report, err := svc.RunGC(cfg)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(report)
}

func handleCleanupExpired(svc *service.Service, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n, err := svc.CleanupExpired()
	if err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"deleted": n})
}

func handleMigrateV1(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := svc.MigrateV1(req.GetString("path", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(report)
}
