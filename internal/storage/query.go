package storage

import (
	"database/sql"
	"time"

	"github.com/go-ports/memorypilot/internal/embedding"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
)

// ListFilter narrows List to a project, a set of kinds, and optionally
// includes already-expired memories.
type ListFilter struct {
	Project        string
	Kinds          []models.Kind
	IncludeExpired bool
	Cursor         string // last-seen id from a previous page, "" for the first page
	Limit          int
}

// List returns memories ordered by updated_at descending, newest first,
// paginated by a simple (updated_at, id) cursor.
func (s *Store) List(f ListFilter) ([]*models.Memory, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var params []any
	where, params := buildFilterWhere(f.Project, f.Kinds, f.IncludeExpired, now, params)

	var cursorUpdatedAt string
	if f.Cursor != "" {
		if err := s.db.QueryRow(`SELECT updated_at FROM memories WHERE id = ?`, f.Cursor).Scan(&cursorUpdatedAt); err != nil && err != sql.ErrNoRows {
			return nil, perr.Wrap(perr.Storage, err, "List: cursor lookup")
		}
	}
	if cursorUpdatedAt != "" {
		if where == "" {
			where = " WHERE updated_at < ?"
		} else {
			where += " AND updated_at < ?"
		}
		params = append(params, cursorUpdatedAt)
	}

	query := `SELECT ` + memoryColumns + ` FROM memories` + where + ` ORDER BY updated_at DESC LIMIT ?`
	params = append(params, f.Limit)

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "List: query")
	}
	defer rows.Close()

	var out []*models.Memory
	for rows.Next() {
		mem, err := scanMemoryRow(rows)
		if err != nil {
			return nil, perr.Wrap(perr.Storage, err, "List: scan")
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

// CandidateFilter narrows the lexical/vector candidate fetch used by the
// search engine.
type CandidateFilter struct {
	Project        string
	Kinds          []models.Kind
	IncludeExpired bool
	Limit          int
}

// VectorCandidates returns up to f.Limit memories matching the filter and
// having a non-null embedding, for the search engine's brute-force cosine
// pass. The non-null-embedding predicate is applied in SQL so the limit
// bounds the real candidate set rather than shrinking it after the fact.
// Unlike Get, this never touches access_count.
func (s *Store) VectorCandidates(f CandidateFilter) ([]*models.Memory, error) {
	if f.Limit <= 0 {
		f.Limit = 200
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var params []any
	where, params := buildFilterWhere(f.Project, f.Kinds, f.IncludeExpired, now, params)
	if where == "" {
		where = " WHERE embedding IS NOT NULL"
	} else {
		where += " AND embedding IS NOT NULL"
	}
	query := `SELECT ` + memoryColumns + ` FROM memories` + where + ` ORDER BY updated_at DESC LIMIT ?`
	params = append(params, f.Limit)

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "VectorCandidates: query")
	}
	defer rows.Close()

	var out []*models.Memory
	for rows.Next() {
		mem, err := scanMemoryRow(rows)
		if err != nil {
			return nil, perr.Wrap(perr.Storage, err, "VectorCandidates: scan")
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

// LexicalCandidate is one BM25 hit from the FTS5 index.
type LexicalCandidate struct {
	ID    string
	Rank  float64 // raw bm25() score; lower is better per SQLite FTS5 convention
}

// LexicalCandidates runs the FTS5 match query and returns up to limit hits
// ordered by bm25 rank, best first.
func (s *Store) LexicalCandidates(query, project string, kinds []models.Kind, includeExpired bool, limit int) ([]LexicalCandidate, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	sqlQuery := `
		SELECT m.id, bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories m ON m.rowid = memories_fts.rowid
		WHERE memories_fts MATCH ?`
	params := []any{query}

	var filterParams []any
	where, filterParams := buildFilterWhere(project, kinds, includeExpired, now, filterParams)
	if where != "" {
		sqlQuery += " AND " + where[len(" WHERE "):]
		params = append(params, filterParams...)
	}
	sqlQuery += " ORDER BY rank LIMIT ?"
	params = append(params, limit)

	rows, err := s.db.Query(sqlQuery, params...)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "LexicalCandidates: query")
	}
	defer rows.Close()

	var out []LexicalCandidate
	for rows.Next() {
		var c LexicalCandidate
		if err := rows.Scan(&c.ID, &c.Rank); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "LexicalCandidates: scan")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RelatedEdge is one hop discovered by Related.
type RelatedEdge struct {
	MemoryID     string
	RelationType models.RelationType
	Depth        int
}

// Related performs a breadth-first traversal of the link graph starting
// from id, up to maxDepth hops, tolerating cycles via a visited set.
func (s *Store) Related(id string, maxDepth int) ([]RelatedEdge, error) {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	visited := map[string]bool{id: true}
	frontier := []string{id}
	var out []RelatedEdge

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, cur := range frontier {
			rows, err := s.db.Query(`
				SELECT target_id, relation_type FROM memory_links WHERE source_id = ?
				UNION
				SELECT source_id, relation_type FROM memory_links WHERE target_id = ?`, cur, cur)
			if err != nil {
				return nil, perr.Wrap(perr.Storage, err, "Related: query")
			}
			for rows.Next() {
				var other, rel string
				if err := rows.Scan(&other, &rel); err != nil {
					rows.Close()
					return nil, perr.Wrap(perr.Storage, err, "Related: scan")
				}
				if visited[other] {
					continue
				}
				visited[other] = true
				out = append(out, RelatedEdge{MemoryID: other, RelationType: models.RelationType(rel), Depth: depth})
				next = append(next, other)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return nil, err
			}
		}
		frontier = next
	}
	return out, nil
}

// LinkCountFor returns the number of links (in either direction) touching
// id, used by the search engine's graph-density boost.
func (s *Store) LinkCountFor(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM memory_links WHERE source_id = ? OR target_id = ?`, id, id,
	).Scan(&n)
	if err != nil {
		return 0, perr.Wrap(perr.Storage, err, "LinkCountFor")
	}
	return n, nil
}

// Stats summarizes corpus composition for the get_stats tool.
type Stats struct {
	TotalMemories int
	ByKind        map[models.Kind]int
	ByProject     map[string]int
	ExpiredCount  int
	TotalProjects int
	TotalLinks    int
	DBBytes       int64
	SchemaVersion string
}

// Stats computes corpus-wide counts.
func (s *Store) Stats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Stats{ByKind: make(map[models.Kind]int), ByProject: make(map[string]int)}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Stats: total")
	}

	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM memories GROUP BY kind`)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Stats: by kind")
	}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			rows.Close()
			return nil, perr.Wrap(perr.Storage, err, "Stats: scan kind")
		}
		st.ByKind[models.Kind(k)] = n
	}
	rows.Close()

	rows, err = s.db.Query(`SELECT COALESCE(project, ''), COUNT(*) FROM memories GROUP BY project`)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Stats: by project")
	}
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			rows.Close()
			return nil, perr.Wrap(perr.Storage, err, "Stats: scan project")
		}
		st.ByProject[p] = n
	}
	rows.Close()

	now := rfc3339(time.Now().UTC())
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE expires_at IS NOT NULL AND expires_at < ?`, now).Scan(&st.ExpiredCount); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Stats: expired")
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&st.TotalProjects); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Stats: projects")
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memory_links`).Scan(&st.TotalLinks); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Stats: links")
	}
	st.SchemaVersion = SchemaVersion

	var pageCount, pageSize int64
	if err := s.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err == nil {
		if err := s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err == nil {
			st.DBBytes = pageCount * pageSize
		}
	}

	return st, nil
}

// BackfillEmbeddings recomputes the embedding for every memory whose stored
// embedding blob is empty or nil, e.g. after a migration that skipped
// embedding computation. Returns the number of rows updated.
func (s *Store) BackfillEmbeddings() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, perr.Wrap(perr.Storage, err, "BackfillEmbeddings: begin")
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT id, content FROM memories WHERE embedding IS NULL OR length(embedding) = 0`)
	if err != nil {
		return 0, perr.Wrap(perr.Storage, err, "BackfillEmbeddings: query")
	}
	type pending struct{ id, content string }
	var items []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.content); err != nil {
			rows.Close()
			return 0, perr.Wrap(perr.Storage, err, "BackfillEmbeddings: scan")
		}
		items = append(items, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	stats, err := idfSnapshotTx(tx)
	if err != nil {
		return 0, err
	}
	for _, p := range items {
		vec := embedding.Embed(p.content, stats)
		if _, err := tx.Exec(`UPDATE memories SET embedding = ? WHERE id = ?`, embedding.Marshal(vec), p.id); err != nil {
			return 0, perr.Wrap(perr.Storage, err, "BackfillEmbeddings: update")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, perr.Wrap(perr.Storage, err, "BackfillEmbeddings: commit")
	}
	return len(items), nil
}

// CleanupExpired permanently deletes every memory whose expires_at has
// passed, backing out its document-frequency contribution for each.
func (s *Store) CleanupExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, perr.Wrap(perr.Storage, err, "CleanupExpired: begin")
	}
	defer func() { _ = tx.Rollback() }()

	now := rfc3339(time.Now().UTC())
	rows, err := tx.Query(`SELECT id, content FROM memories WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return 0, perr.Wrap(perr.Storage, err, "CleanupExpired: query")
	}
	type expired struct{ id, content string }
	var items []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.id, &e.content); err != nil {
			rows.Close()
			return 0, perr.Wrap(perr.Storage, err, "CleanupExpired: scan")
		}
		items = append(items, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, e := range items {
		if err := unbumpDocFreq(tx, e.content); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, e.id); err != nil {
			return 0, perr.Wrap(perr.Storage, err, "CleanupExpired: delete")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, perr.Wrap(perr.Storage, err, "CleanupExpired: commit")
	}
	return len(items), nil
}
