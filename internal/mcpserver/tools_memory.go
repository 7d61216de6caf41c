package mcpserver

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpgoserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/search"
	"github.com/go-ports/memorypilot/internal/service"
	"github.com/go-ports/memorypilot/internal/storage"
)

func validKindStrings() []string {
	out := make([]string, len(models.ValidKinds))
	for i, k := range models.ValidKinds {
		out[i] = string(k)
	}
	return out
}

func registerMemoryTools(s *mcpgoserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("add_memory",
		mcp.WithDescription("Store a single memory — a fact, decision, bug, pattern, snippet, preference, credential, todo, or note — for recall in future sessions."),
		mcp.WithString("content", mcp.Description("The memory's text body."), mcp.Required()),
		mcp.WithString("kind", mcp.Description("Memory kind."), mcp.Required(), mcp.Enum(validKindStrings()...)),
		mcp.WithString("project", mcp.Description("Project name. Omit for a global memory.")),
		mcp.WithArray("tags", mcp.Description("Free-form tags."), mcp.WithStringItems()),
		mcp.WithNumber("importance", mcp.Description("1 (low) to 5 (high); defaults to 3.")),
		mcp.WithString("expires_at", mcp.Description("RFC3339 timestamp after which this memory is treated as expired.")),
		mcp.WithString("metadata", mcp.Description("Opaque caller-defined JSON string.")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleAddMemory(svc, req)
	})

	s.AddTool(mcp.NewTool("add_memories",
		mcp.WithDescription("Store a batch of memories in one call. A single item's failure does not abort the rest of the batch."),
		mcp.WithArray("memories", mcp.Description("Array of memory objects, each shaped like add_memory's arguments."), mcp.Required()),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleAddMemories(svc, req)
	})

	s.AddTool(mcp.NewTool("search_memory",
		mcp.WithDescription("Hybrid lexical+semantic search over stored memories, ranked by relevance, importance, graph density, and recent-file context."),
		mcp.WithString("query", mcp.Description("Search text; empty returns memories ordered by importance then recency.")),
		mcp.WithNumber("k", mcp.Description("Max results (default 10, max 100).")),
		mcp.WithString("project", mcp.Description("Filter to one project.")),
		mcp.WithArray("kinds", mcp.Description("Filter to these kinds."), mcp.WithStringItems()),
		mcp.WithString("working_dir", mcp.Description("Current working directory, used for the recent-file boost and project auto-detection.")),
		mcp.WithBoolean("include_expired", mcp.Description("Include expired memories (demoted, not excluded).")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSearchMemory(svc, req)
	})

	s.AddTool(mcp.NewTool("get_memory",
		mcp.WithDescription("Fetch one memory by id, along with memories reachable through its links."),
		mcp.WithString("id", mcp.Required()),
		mcp.WithNumber("depth", mcp.Description("Link-graph traversal depth, 1 or 2 (default 1).")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetMemory(svc, req)
	})

	s.AddTool(mcp.NewTool("update_memory",
		mcp.WithDescription("Mutate an existing memory's content, tags, importance, expiry, or metadata."),
		mcp.WithString("id", mcp.Required()),
		mcp.WithString("content", mcp.Description("New content; entities/embedding/links are recomputed if this changes.")),
		mcp.WithArray("tags", mcp.WithStringItems()),
		mcp.WithNumber("importance"),
		mcp.WithString("expires_at", mcp.Description("RFC3339 timestamp, or empty string to clear expiry.")),
		mcp.WithBoolean("clear_expires_at", mcp.Description("Set true to clear expires_at explicitly.")),
		mcp.WithString("metadata"),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleUpdateMemory(svc, req)
	})

	s.AddTool(mcp.NewTool("delete_memory",
		mcp.WithDescription("Delete a memory by id, cascading to its entities and links."),
		mcp.WithString("id", mcp.Required()),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDeleteMemory(svc, req)
	})

	s.AddTool(mcp.NewTool("list_memories",
		mcp.WithDescription("Page through memories, newest first, optionally filtered by project and kind."),
		mcp.WithString("project"),
		mcp.WithArray("kinds", mcp.WithStringItems()),
		mcp.WithBoolean("include_expired"),
		mcp.WithString("cursor", mcp.Description("Last-seen id from a previous page.")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50).")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListMemories(svc, req)
	})
}

func parseAddInput(m map[string]any) storage.AddInput {
	content, _ := m["content"].(string)
	kind, _ := m["kind"].(string)
	project, _ := m["project"].(string)
	importance := asInt(m["importance"], 0)
	metadata, _ := m["metadata"].(string)

	in := storage.AddInput{
		Content:    content,
		Kind:       models.Kind(kind),
		Project:    project,
		Tags:       asStringSlice(m["tags"]),
		Importance: importance,
		Metadata:   metadata,
	}
	if raw, ok := m["expires_at"].(string); ok && raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			in.ExpiresAt = &t
		}
	}
	return in
}

func handleAddMemory(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := parseAddInput(req.Params.Arguments)
	res, err := svc.AddMemory(in)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"id": res.ID, "was_deduped": res.WasDeduped})
}

func handleAddMemories(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, _ := req.Params.Arguments["memories"].([]any)
	inputs := make([]storage.AddInput, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			inputs = append(inputs, parseAddInput(m))
		}
	}
	results := svc.AddMemories(inputs)
	out := make([]map[string]any, len(results))
	for i, r := range results {
		out[i] = map[string]any{"id": r.ID, "was_deduped": r.WasDeduped}
	}
	return jsonResult(out)
}

func handleSearchMemory(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := search.Query{
		Text:           req.GetString("query", ""),
		K:              req.GetInt("k", 10),
		Project:        req.GetString("project", ""),
		Kinds:          toKinds(req.GetStringSlice("kinds", nil)),
		WorkingDir:     req.GetString("working_dir", ""),
		IncludeExpired: req.GetBool("include_expired", false),
	}
	results, err := svc.SearchMemory(q)
	if err != nil {
		return errResult(err)
	}
	out := make([]map[string]any, len(results))
	for i, r := range results {
		entry := memoryToMap(r.Memory)
		entry["score"] = r.Score
		out[i] = entry
	}
	return jsonResult(out)
}

func handleGetMemory(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	mem, err := svc.GetMemory(id)
	if err != nil {
		return errResult(err)
	}

	edges, err := svc.RelatedMemories(id, req.GetInt("depth", 1))
	if err != nil {
		return errResult(err)
	}

	related := make([]map[string]any, len(edges))
	for i, e := range edges {
		related[i] = map[string]any{
			"id":            e.MemoryID,
			"relation_type": string(e.RelationType),
			"depth":         e.Depth,
		}
	}

	out := memoryToMap(mem)
	out["related"] = related
	return jsonResult(out)
}

func handleUpdateMemory(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.Params.Arguments
	in := storage.UpdateInput{}

	if content, ok := args["content"].(string); ok {
		in.Content = &content
	}
	if _, ok := args["tags"]; ok {
		in.Tags = asStringSlice(args["tags"])
		in.TagsSet = true
	}
	if _, ok := args["importance"]; ok {
		importance := asInt(args["importance"], 0)
		in.Importance = &importance
	}
	if req.GetBool("clear_expires_at", false) {
		in.ExpiresAtSet = true
		in.ExpiresAt = nil
	} else if raw, ok := args["expires_at"].(string); ok && raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			in.ExpiresAtSet = true
			in.ExpiresAt = &t
		}
	}
	if metadata, ok := args["metadata"].(string); ok {
		in.Metadata = &metadata
	}

	mem, err := svc.UpdateMemory(req.GetString("id", ""), in)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(memoryToMap(mem))
}

func handleDeleteMemory(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if err := svc.DeleteMemory(id); err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"deleted": id})
}

func handleListMemories(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := storage.ListFilter{
		Project:        req.GetString("project", ""),
		Kinds:          toKinds(req.GetStringSlice("kinds", nil)),
		IncludeExpired: req.GetBool("include_expired", false),
		Cursor:         req.GetString("cursor", ""),
		Limit:          req.GetInt("limit", 50),
	}
	memories, err := svc.ListMemories(f)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(memoriesToMaps(memories))
}
