package mcpserver

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
)

// errorCodes assigns a stable JSON-RPC-style code to each §7 error kind, in
// the custom-server-error range reserved by the JSON-RPC 2.0 spec.
var errorCodes = map[perr.Kind]int{
	perr.InvalidArgument: -32001,
	perr.NotFound:        -32002,
	perr.Duplicate:       -32003,
	perr.Conflict:        -32004,
	perr.Storage:         -32005,
	perr.Corruption:      -32006,
	perr.Unavailable:     -32007,
	perr.Internal:        -32000,
}

// jsonResult marshals v as the tool's text result, matching the jsonResult
// helper in go-ports/echovault's internal/mcp/server.go.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// errResult renders err as a tool error result rather than a transport-level
// failure, so JSON-RPC callers see it via the normal tool-call response. The
// body carries the §7 taxonomy (code, message, data.kind) a caller can
// switch on, rather than a bare message string.
func errResult(err error) (*mcp.CallToolResult, error) {
	kind := perr.KindOf(err)
	code, ok := errorCodes[kind]
	if !ok {
		code = errorCodes[perr.Internal]
	}
	body := map[string]any{
		"code":    code,
		"message": err.Error(),
		"data":    map[string]any{"kind": string(kind)},
	}
	b, merr := json.Marshal(body)
	if merr != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultError(string(b)), nil
}

// memoryToMap renders a Memory for a tool result, omitting the raw
// embedding vector (opaque to callers, and not worth the payload size).
func memoryToMap(m *models.Memory) map[string]any {
	out := map[string]any{
		"id":           m.ID,
		"content":      m.Content,
		"kind":         string(m.Kind),
		"tags":         m.Tags,
		"importance":   m.Importance,
		"created_at":   m.CreatedAt,
		"updated_at":   m.UpdatedAt,
		"access_count": m.AccessCount,
	}
	if m.Project != "" {
		out["project"] = m.Project
	}
	if m.ExpiresAt != nil {
		out["expires_at"] = *m.ExpiresAt
	}
	if m.LastAccessedAt != nil {
		out["last_accessed_at"] = *m.LastAccessedAt
	}
	if m.Metadata != "" {
		out["metadata"] = m.Metadata
	}
	return out
}

// memoriesToMaps applies memoryToMap across a slice.
func memoriesToMaps(ms []*models.Memory) []map[string]any {
	out := make([]map[string]any, len(ms))
	for i, m := range ms {
		out[i] = memoryToMap(m)
	}
	return out
}

// toKinds converts a raw string slice into models.Kind, dropping values
// that are not in the valid kind set.
func toKinds(raw []string) []models.Kind {
	var out []models.Kind
	for _, r := range raw {
		k := models.Kind(r)
		if models.IsValidKind(k) {
			out = append(out, k)
		}
	}
	return out
}

// asStringSlice best-effort converts a raw JSON-decoded []any into []string.
func asStringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// asInt best-effort converts a raw JSON-decoded number (float64) into int.
func asInt(v any, def int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}
