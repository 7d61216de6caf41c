package storage

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-ports/memorypilot/internal/embedding"
	"github.com/go-ports/memorypilot/internal/models"
)

// rfc3339 formats t the same way across every write path. Nanosecond
// precision (rather than plain RFC3339's whole-second precision) keeps
// rapid successive writes — common in tests and bulk imports — from
// colliding on created_at, which the supersedes/deprecates ordering check
// in links.go depends on.
func rfc3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// scanMemoryRow reads one row from a `SELECT id, content, kind, project, tags,
// importance, created_at, updated_at, expires_at, last_accessed_at,
// access_count, embedding, metadata` query into a models.Memory.
func scanMemoryRow(rows *sql.Rows) (*models.Memory, error) {
	var (
		id, content, kind, tagsJSON, createdAt, updatedAt, metadata string
		project, expiresAt, lastAccessedAt                         sql.NullString
		importance, accessCount                                    int
		embBlob                                                     []byte
	)
	if err := rows.Scan(
		&id, &content, &kind, &project, &tagsJSON, &importance,
		&createdAt, &updatedAt, &expiresAt, &lastAccessedAt, &accessCount,
		&embBlob, &metadata,
	); err != nil {
		return nil, err
	}

	m := &models.Memory{
		ID:          id,
		Content:     content,
		Kind:        models.Kind(kind),
		Project:     project.String,
		Importance:  importance,
		AccessCount: accessCount,
		Metadata:    metadata,
		Embedding:   embedding.Unmarshal(embBlob),
	}
	_ = json.Unmarshal([]byte(tagsJSON), &m.Tags)

	if t, err := parseRFC3339(createdAt); err == nil {
		m.CreatedAt = t
	}
	if t, err := parseRFC3339(updatedAt); err == nil {
		m.UpdatedAt = t
	}
	if expiresAt.Valid {
		if t, err := parseRFC3339(expiresAt.String); err == nil {
			m.ExpiresAt = &t
		}
	}
	if lastAccessedAt.Valid {
		if t, err := parseRFC3339(lastAccessedAt.String); err == nil {
			m.LastAccessedAt = &t
		}
	}
	return m, nil
}

const memoryColumns = `id, content, kind, project, tags, importance,
	created_at, updated_at, expires_at, last_accessed_at, access_count,
	embedding, metadata`

// buildFilterWhere builds a " WHERE ..." clause (or "") from optional
// project/kind filters and an include-expired flag, appending to params.
func buildFilterWhere(project string, kinds []models.Kind, includeExpired bool, now time.Time, params []any) (string, []any) {
	var clauses []string
	if project != "" {
		clauses = append(clauses, "project = ?")
		params = append(params, project)
	}
	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, k := range kinds {
			placeholders[i] = "?"
			params = append(params, string(k))
		}
		clauses = append(clauses, "kind IN ("+strings.Join(placeholders, ",")+")")
	}
	if !includeExpired {
		clauses = append(clauses, "(expires_at IS NULL OR expires_at >= ?)")
		params = append(params, rfc3339(now))
	}
	if len(clauses) == 0 {
		return "", params
	}
	return " WHERE " + strings.Join(clauses, " AND "), params
}
