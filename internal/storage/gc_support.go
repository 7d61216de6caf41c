package storage

import (
	"encoding/json"
	"time"

	"github.com/go-ports/memorypilot/internal/embedding"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
)

// AllMemories returns every memory in the corpus, including already-expired
// ones, without touching access tracking. Used by the garbage collector's
// staleness scan, which needs to see expired rows to report and reason
// about them even though it deletes them through a separate path.
func (s *Store) AllMemories() ([]*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT ` + memoryColumns + ` FROM memories`)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "AllMemories: query")
	}
	defer rows.Close()

	var out []*models.Memory
	for rows.Next() {
		mem, err := scanMemoryRow(rows)
		if err != nil {
			return nil, perr.Wrap(perr.Storage, err, "AllMemories: scan")
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

// EntitiesForMemory returns the entities recorded for id.
func (s *Store) EntitiesForMemory(id string) ([]models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "EntitiesForMemory: begin")
	}
	defer func() { _ = tx.Rollback() }()

	out, err := entitiesFor(tx, id)
	if err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

// MergeResult is the outcome of replacing a cluster of memories with one
// summary memory.
type MergeResult struct {
	NewID string
}

// ReplaceWithMerge deletes every memory in memberIDs and inserts one new
// memory carrying mergedContent/importance/tags/timestamps, linking it to
// the union of entities the members referenced. All in one transaction.
func (s *Store) ReplaceWithMerge(memberIDs []string, kind models.Kind, project string, mergedContent string, importance int, createdAt, updatedAt time.Time, tags []string) (*MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "ReplaceWithMerge: begin")
	}
	defer func() { _ = tx.Rollback() }()

	entitySet := make(map[string]models.Entity)
	for _, id := range memberIDs {
		ents, err := entitiesFor(tx, id)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			entitySet[string(e.Kind)+":"+e.Value] = e
		}
		var content string
		if err := tx.QueryRow(`SELECT content FROM memories WHERE id = ?`, id).Scan(&content); err == nil {
			if err := unbumpDocFreq(tx, content); err != nil {
				return nil, err
			}
		}
		if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, id); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "ReplaceWithMerge: delete member")
		}
	}

	newID := models.NewID()
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, perr.Wrap(perr.Internal, err, "ReplaceWithMerge: marshal tags")
	}
	if _, err := tx.Exec(`
		INSERT INTO memories (id, content, kind, project, tags, importance,
			created_at, updated_at, access_count, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, '')`,
		newID, mergedContent, string(kind), nullableString(project), string(tagsJSON), importance,
		rfc3339(createdAt), rfc3339(updatedAt),
	); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "ReplaceWithMerge: insert")
	}
	if err := bumpDocFreq(tx, mergedContent); err != nil {
		return nil, err
	}

	stats, err := idfSnapshotTx(tx)
	if err != nil {
		return nil, err
	}
	vec := embedding.Embed(mergedContent, stats)
	if _, err := tx.Exec(`UPDATE memories SET embedding = ? WHERE id = ?`, embedding.Marshal(vec), newID); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "ReplaceWithMerge: embedding")
	}

	var entities []models.Entity
	for _, e := range entitySet {
		entities = append(entities, e)
	}
	if err := insertEntities(tx, newID, entities); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "ReplaceWithMerge: commit")
	}
	return &MergeResult{NewID: newID}, nil
}

// OrphanCleanup deletes memory_entities/memory_links rows whose referenced
// memory no longer exists. Foreign-key cascades already cover this in
// normal operation; this is a belt-and-braces sweep for rows that slip
// through (e.g. written by an older schema version).
func (s *Store) OrphanCleanup() (entitiesCleaned, linksCleaned int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, perr.Wrap(perr.Storage, err, "OrphanCleanup: begin")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM memory_entities WHERE memory_id NOT IN (SELECT id FROM memories)`)
	if err != nil {
		return 0, 0, perr.Wrap(perr.Storage, err, "OrphanCleanup: entities")
	}
	if n, err := res.RowsAffected(); err == nil {
		entitiesCleaned = int(n)
	}

	res, err = tx.Exec(`DELETE FROM memory_links WHERE source_id NOT IN (SELECT id FROM memories) OR target_id NOT IN (SELECT id FROM memories)`)
	if err != nil {
		return 0, 0, perr.Wrap(perr.Storage, err, "OrphanCleanup: links")
	}
	if n, err := res.RowsAffected(); err == nil {
		linksCleaned = int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, perr.Wrap(perr.Storage, err, "OrphanCleanup: commit")
	}
	return entitiesCleaned, linksCleaned, nil
}

// Vacuum runs SQLite's VACUUM to reclaim disk space after bulk deletes.
func (s *Store) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return perr.Wrap(perr.Storage, err, "Vacuum")
	}
	return nil
}

// PageStats reports SQLite's page_count/freelist_count/page_size, used to
// estimate reclaimable bytes for the GC's vacuum-threshold decision.
func (s *Store) PageStats() (pageCount, freelistCount, pageSize int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err = s.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err != nil {
		return 0, 0, 0, perr.Wrap(perr.Storage, err, "PageStats: page_count")
	}
	if err = s.db.QueryRow(`PRAGMA freelist_count`).Scan(&freelistCount); err != nil {
		return 0, 0, 0, perr.Wrap(perr.Storage, err, "PageStats: freelist_count")
	}
	if err = s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, 0, 0, perr.Wrap(perr.Storage, err, "PageStats: page_size")
	}
	return pageCount, freelistCount, pageSize, nil
}

// DeleteMany removes every memory in ids in one transaction, backing out
// each one's document-frequency contribution. Missing ids are skipped.
func (s *Store) DeleteMany(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return perr.Wrap(perr.Storage, err, "DeleteMany: begin")
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		var content string
		if err := tx.QueryRow(`SELECT content FROM memories WHERE id = ?`, id).Scan(&content); err != nil {
			continue
		}
		if err := unbumpDocFreq(tx, content); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM memories WHERE id = ?`, id); err != nil {
			return perr.Wrap(perr.Storage, err, "DeleteMany: delete")
		}
	}

	return tx.Commit()
}
