package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-ports/memorypilot/internal/embedding"
	"github.com/go-ports/memorypilot/internal/entity"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
	"github.com/go-ports/memorypilot/internal/redaction"
	"github.com/go-ports/memorypilot/internal/tokenize"
)

// AddInput is the caller-supplied data for a new memory.
type AddInput struct {
	Content    string
	Kind       models.Kind
	Project    string
	Tags       []string
	Importance int // 0 means "use default 3"
	ExpiresAt  *time.Time
	Metadata   string
	// CreatedAt overrides the insert timestamp; nil means "now". Set by the
	// V1 migration importer to preserve a record's original creation time,
	// with updated_at following it rather than the import moment.
	CreatedAt *time.Time
	// ID preserves a caller-supplied id instead of minting a fresh one via
	// models.NewID(). Empty means "mint a fresh id". Used only by the V1
	// migration importer, so an export→migrate round trip reproduces the
	// same ids; a non-empty ID that already exists is rejected rather than
	// silently overwritten.
	ID string
}

// AddResult reports whether the insert happened or a near-duplicate was
// returned instead.
type AddResult struct {
	ID         string
	WasDeduped bool
}

// dedupThreshold is the Jaccard token similarity above which a new memory is
// treated as a near-duplicate of an existing one.
const dedupThreshold = 0.85

// Add stores a new memory, or returns the id of an existing near-duplicate
// within the same project without inserting.
func (s *Store) Add(in AddInput) (*AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in.Content = redaction.Redact(in.Content, s.redactPatterns)
	if err := validateAddInput(&in); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Add: begin")
	}
	defer func() { _ = tx.Rollback() }()

	if existingID, found, err := findDuplicate(tx, in.Project, in.Content); err != nil {
		return nil, err
	} else if found {
		if err := tx.Commit(); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "Add: commit dedup")
		}
		return &AddResult{ID: existingID, WasDeduped: true}, nil
	}

	if in.ID != "" {
		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM memories WHERE id = ?`, in.ID).Scan(&exists); err == nil {
			return nil, perr.New(perr.Duplicate, "Add: id %q already exists", in.ID)
		} else if err != sql.ErrNoRows {
			return nil, perr.Wrap(perr.Storage, err, "Add: check id collision")
		}
	}

	id, err := insertMemoryTx(tx, in)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Add: commit")
	}
	return &AddResult{ID: id}, nil
}

func validateAddInput(in *AddInput) error {
	if in.Content == "" {
		return perr.New(perr.InvalidArgument, "Add: content must not be empty")
	}
	if !models.IsValidKind(in.Kind) {
		return perr.New(perr.InvalidArgument, "Add: unrecognized kind %q", in.Kind)
	}
	if in.Importance == 0 {
		in.Importance = 3
	}
	if in.Importance < 1 || in.Importance > 5 {
		return perr.New(perr.InvalidArgument, "Add: importance %d out of range [1,5]", in.Importance)
	}
	return nil
}

// findDuplicate looks for an existing memory in the same project whose
// Jaccard token similarity against content is >= dedupThreshold.
func findDuplicate(tx *sql.Tx, project, content string) (string, bool, error) {
	var rows *sql.Rows
	var err error
	if project == "" {
		rows, err = tx.Query(`SELECT id, content FROM memories WHERE project IS NULL`)
	} else {
		rows, err = tx.Query(`SELECT id, content FROM memories WHERE project = ?`, project)
	}
	if err != nil {
		return "", false, perr.Wrap(perr.Storage, err, "findDuplicate")
	}
	defer rows.Close()

	for rows.Next() {
		var id, existing string
		if err := rows.Scan(&id, &existing); err != nil {
			return "", false, perr.Wrap(perr.Storage, err, "findDuplicate: scan")
		}
		if tokenize.Jaccard(content, existing) >= dedupThreshold {
			return id, true, nil
		}
	}
	return "", false, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// insertMemoryTx performs the actual row insert plus FTS mirror (via
// trigger), embedding, entity extraction, and link creation, all within tx.
func insertMemoryTx(tx *sql.Tx, in AddInput) (string, error) {
	id := in.ID
	if id == "" {
		id = models.NewID()
	}
	now := time.Now().UTC()
	createdAt, updatedAt := now, now
	if in.CreatedAt != nil {
		createdAt = in.CreatedAt.UTC()
		updatedAt = createdAt
	}

	tagsJSON, err := json.Marshal(in.Tags)
	if err != nil {
		return "", perr.Wrap(perr.Internal, err, "insertMemoryTx: marshal tags")
	}

	var expiresAt sql.NullString
	if in.ExpiresAt != nil {
		expiresAt = sql.NullString{String: rfc3339(*in.ExpiresAt), Valid: true}
	}

	if _, err := tx.Exec(`
		INSERT INTO memories (id, content, kind, project, tags, importance,
			created_at, updated_at, expires_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Content, string(in.Kind), nullableString(in.Project), string(tagsJSON),
		in.Importance, rfc3339(createdAt), rfc3339(updatedAt), expiresAt, in.Metadata,
	); err != nil {
		return "", perr.Wrap(perr.Storage, err, "insertMemoryTx: insert")
	}

	if err := bumpDocFreq(tx, in.Content); err != nil {
		return "", err
	}

	// Embedding is computed against the doc-frequency table as it stood
	// before this insert's own tokens were counted, keeping the IDF table
	// read-only for the duration of a single insert.
	stats, err := idfSnapshotTx(tx)
	if err != nil {
		return "", err
	}
	vec := embedding.Embed(in.Content, stats)
	if _, err := tx.Exec(`UPDATE memories SET embedding = ? WHERE id = ?`, embedding.Marshal(vec), id); err != nil {
		return "", perr.Wrap(perr.Storage, err, "insertMemoryTx: embedding")
	}

	entities := entity.Extract(in.Content, in.Project)
	if err := insertEntities(tx, id, entities); err != nil {
		return "", err
	}
	if err := linkNewMemoryToNeighbors(tx, id, in.Kind, entities, now); err != nil {
		return "", err
	}

	return id, nil
}

// idfSnapshotTx loads term_doc_freq + total count within an open
// transaction (used mid-write, unlike the public DocStats which takes its
// own lock for read-path use).
func idfSnapshotTx(tx *sql.Tx) (*docStatsSnapshot, error) {
	snap := &docStatsSnapshot{df: make(map[string]int)}
	if err := tx.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&snap.total); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "idfSnapshotTx: count")
	}
	rows, err := tx.Query(`SELECT term, df FROM term_doc_freq`)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "idfSnapshotTx: query")
	}
	defer rows.Close()
	for rows.Next() {
		var term string
		var df int
		if err := rows.Scan(&term, &df); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "idfSnapshotTx: scan")
		}
		snap.df[term] = df
	}
	return snap, rows.Err()
}

// AddBulkResult is the per-item outcome of AddBulk.
type AddBulkResult struct {
	ID         string
	WasDeduped bool
	Err        error
}

// AddBulk adds each input independently: a single item's failure produces a
// per-item error entry but never aborts the batch.
func (s *Store) AddBulk(inputs []AddInput) []AddBulkResult {
	out := make([]AddBulkResult, len(inputs))
	for i, in := range inputs {
		res, err := s.Add(in)
		if err != nil {
			out[i] = AddBulkResult{Err: err}
			continue
		}
		out[i] = AddBulkResult{ID: res.ID, WasDeduped: res.WasDeduped}
	}
	return out
}

// Get fetches a memory by id, incrementing access_count and stamping
// last_accessed_at. Returns perr.NotFound if absent.
func (s *Store) Get(id string) (*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Get: begin")
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Get: query")
	}
	var mem *models.Memory
	if rows.Next() {
		mem, err = scanMemoryRow(rows)
	}
	rows.Close()
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Get: scan")
	}
	if mem == nil {
		return nil, perr.New(perr.NotFound, "Get: memory %q not found", id)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`,
		rfc3339(now), id,
	); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Get: touch access")
	}
	if err := tx.Commit(); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Get: commit")
	}

	mem.AccessCount++
	mem.LastAccessedAt = &now
	return mem, nil
}

// TouchAccess bumps access_count and stamps last_accessed_at for every id in
// one transaction, for the search engine's batched read-access side effect.
// Unknown ids are silently skipped rather than erroring, matching Get's
// treatment of a concurrently deleted memory.
func (s *Store) TouchAccess(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return perr.Wrap(perr.Storage, err, "TouchAccess: begin")
	}
	defer func() { _ = tx.Rollback() }()

	now := rfc3339(time.Now().UTC())
	stmt, err := tx.Prepare(`UPDATE memories SET access_count = access_count + 1, last_accessed_at = ? WHERE id = ?`)
	if err != nil {
		return perr.Wrap(perr.Storage, err, "TouchAccess: prepare")
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(now, id); err != nil {
			return perr.Wrap(perr.Storage, err, "TouchAccess: exec")
		}
	}

	if err := tx.Commit(); err != nil {
		return perr.Wrap(perr.Storage, err, "TouchAccess: commit")
	}
	return nil
}

// peekMemory fetches a memory by id without updating access tracking, for
// internal use by components that must not count as a "read" (search boost
// computation pre-fetch, GC, update, delete).
func peekMemoryTx(tx *sql.Tx, id string) (*models.Memory, error) {
	rows, err := tx.Query(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "peekMemory: query")
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, nil
	}
	return scanMemoryRow(rows)
}

// UpdateInput carries the mutable fields a caller wants to change; nil/unset
// fields are left untouched.
type UpdateInput struct {
	Content      *string
	Tags         []string
	TagsSet      bool
	Importance   *int
	ExpiresAt    *time.Time
	ExpiresAtSet bool
	Metadata     *string
}

// Update mutates an existing memory's fields, re-extracting entities and
// recomputing the embedding if content changed, and reconciling links.
func (s *Store) Update(id string, in UpdateInput) (*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Update: begin")
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := peekMemoryTx(tx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, perr.New(perr.NotFound, "Update: memory %q not found", id)
	}

	if in.Content != nil {
		redacted := redaction.Redact(*in.Content, s.redactPatterns)
		in.Content = &redacted
	}
	contentChanged := in.Content != nil && *in.Content != existing.Content
	now := time.Now().UTC()

	sets := []string{"updated_at = ?"}
	params := []any{rfc3339(now)}

	if in.Content != nil {
		sets = append(sets, "content = ?")
		params = append(params, *in.Content)
	}
	if in.TagsSet {
		tagsJSON, merr := json.Marshal(in.Tags)
		if merr != nil {
			return nil, perr.Wrap(perr.Internal, merr, "Update: marshal tags")
		}
		sets = append(sets, "tags = ?")
		params = append(params, string(tagsJSON))
	}
	if in.Importance != nil {
		if *in.Importance < 1 || *in.Importance > 5 {
			return nil, perr.New(perr.InvalidArgument, "Update: importance %d out of range [1,5]", *in.Importance)
		}
		sets = append(sets, "importance = ?")
		params = append(params, *in.Importance)
	}
	if in.ExpiresAtSet {
		if in.ExpiresAt == nil {
			sets = append(sets, "expires_at = NULL")
		} else {
			sets = append(sets, "expires_at = ?")
			params = append(params, rfc3339(*in.ExpiresAt))
		}
	}
	if in.Metadata != nil {
		sets = append(sets, "metadata = ?")
		params = append(params, *in.Metadata)
	}

	query := "UPDATE memories SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = ?"
	params = append(params, id)
	if _, err := tx.Exec(query, params...); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Update: exec")
	}

	if contentChanged {
		if err := unbumpDocFreq(tx, existing.Content); err != nil {
			return nil, err
		}
		if err := bumpDocFreq(tx, *in.Content); err != nil {
			return nil, err
		}
		stats, err := idfSnapshotTx(tx)
		if err != nil {
			return nil, err
		}
		vec := embedding.Embed(*in.Content, stats)
		if _, err := tx.Exec(`UPDATE memories SET embedding = ? WHERE id = ?`, embedding.Marshal(vec), id); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "Update: embedding")
		}

		oldEntities, err := entitiesFor(tx, id)
		if err != nil {
			return nil, err
		}
		newEntities := entity.Extract(*in.Content, existing.Project)

		oldSet := make(map[string]bool, len(oldEntities))
		for _, e := range oldEntities {
			oldSet[string(e.Kind)+":"+e.Value] = true
		}
		newSet := make(map[string]bool, len(newEntities))
		for _, e := range newEntities {
			newSet[string(e.Kind)+":"+e.Value] = true
		}

		for _, e := range oldEntities {
			if !newSet[string(e.Kind)+":"+e.Value] {
				if _, err := tx.Exec(`DELETE FROM memory_entities WHERE memory_id = ? AND entity_kind = ? AND entity_value = ?`,
					id, string(e.Kind), e.Value); err != nil {
					return nil, perr.Wrap(perr.Storage, err, "Update: remove entity")
				}
			}
		}
		var addedEntities []models.Entity
		for _, e := range newEntities {
			if !oldSet[string(e.Kind)+":"+e.Value] {
				addedEntities = append(addedEntities, e)
			}
		}
		if err := insertEntities(tx, id, addedEntities); err != nil {
			return nil, err
		}

		kind := existing.Kind
		if err := linkNewMemoryToNeighbors(tx, id, kind, addedEntities, now); err != nil {
			return nil, err
		}
		if err := reconcileLinksAfterUpdate(tx, id, newEntities); err != nil {
			return nil, err
		}
	}

	updated, err := peekMemoryTx(tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "Update: commit")
	}
	return updated, nil
}

// Delete removes a memory, cascading to its entities and links via foreign
// keys, and backs out its contribution to the document-frequency table.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return perr.Wrap(perr.Storage, err, "Delete: begin")
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := peekMemoryTx(tx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return perr.New(perr.NotFound, "Delete: memory %q not found", id)
	}

	if err := unbumpDocFreq(tx, existing.Content); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, id); err != nil {
		return perr.Wrap(perr.Storage, err, "Delete: exec")
	}

	return tx.Commit()
}
