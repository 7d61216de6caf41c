package storage

import (
	"database/sql"
	"time"

	"github.com/go-ports/memorypilot/internal/entity"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
)

// maxNeighborsPerEntity caps link fan-out: at most 10 neighbours per entity
// per new memory.
const maxNeighborsPerEntity = 10

// insertEntities writes rows into memory_entities, idempotently.
func insertEntities(tx *sql.Tx, memoryID string, entities []models.Entity) error {
	for _, e := range entities {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO memory_entities (memory_id, entity_kind, entity_value) VALUES (?, ?, ?)`,
			memoryID, string(e.Kind), e.Value,
		); err != nil {
			return perr.Wrap(perr.Storage, err, "insertEntities")
		}
	}
	return nil
}

// entitiesFor returns the current entities recorded for memoryID.
func entitiesFor(tx *sql.Tx, memoryID string) ([]models.Entity, error) {
	rows, err := tx.Query(`SELECT entity_kind, entity_value FROM memory_entities WHERE memory_id = ?`, memoryID)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "entitiesFor")
	}
	defer rows.Close()

	var out []models.Entity
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "entitiesFor: scan")
		}
		out = append(out, models.Entity{MemoryID: memoryID, Kind: models.EntityKind(kind), Value: value})
	}
	return out, rows.Err()
}

// sharedNeighbor is an existing memory found to carry an entity in common
// with the memory being linked.
type sharedNeighbor struct {
	ID        string
	Kind      models.Kind
	CreatedAt time.Time
}

// neighborsSharingEntity finds up to maxNeighborsPerEntity other memories
// (excluding excludeID) that carry the same (kind, value) entity.
func neighborsSharingEntity(tx *sql.Tx, kind models.EntityKind, value, excludeID string) ([]sharedNeighbor, error) {
	rows, err := tx.Query(`
		SELECT m.id, m.kind, m.created_at
		FROM memory_entities me
		JOIN memories m ON m.id = me.memory_id
		WHERE me.entity_kind = ? AND me.entity_value = ? AND me.memory_id != ?
		LIMIT ?`, string(kind), value, excludeID, maxNeighborsPerEntity)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "neighborsSharingEntity")
	}
	defer rows.Close()

	var out []sharedNeighbor
	for rows.Next() {
		var id, k, createdAt string
		if err := rows.Scan(&id, &k, &createdAt); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "neighborsSharingEntity: scan")
		}
		ts, err := parseRFC3339(createdAt)
		if err != nil {
			return nil, perr.Wrap(perr.Corruption, err, "neighborsSharingEntity: parse created_at")
		}
		out = append(out, sharedNeighbor{ID: id, Kind: models.Kind(k), CreatedAt: ts})
	}
	return out, rows.Err()
}

// linkNewMemoryToNeighbors creates links from newID (source) to any existing
// memory sharing one of newEntities, inferring the relation from
// (newKind -> neighborKind), idempotently. A neighbor the new memory
// obviously supersedes (entity §4.2's "same entities, newer, kind in
// {decision, pattern}" test) is linked via deprecates instead.
func linkNewMemoryToNeighbors(tx *sql.Tx, newID string, newKind models.Kind, newEntities []models.Entity, now time.Time) error {
	linked := make(map[string]bool)
	for _, e := range newEntities {
		neighbors, err := neighborsSharingEntity(tx, e.Kind, e.Value, newID)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			if linked[n.ID] {
				continue
			}
			linked[n.ID] = true

			rel := entity.InferRelation(newKind, n.Kind)
			if now.After(n.CreatedAt) {
				olderEntities, err := entitiesFor(tx, n.ID)
				if err != nil {
					return err
				}
				if entity.Supersedes(newKind, n.Kind, newEntities, olderEntities) {
					rel = models.RelationDeprecates
				}
			}
			if err := insertLink(tx, newID, n.ID, rel, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertLink writes one edge, idempotently. Self-links are silently
// skipped.
func insertLink(tx *sql.Tx, sourceID, targetID string, rel models.RelationType, now time.Time) error {
	if sourceID == targetID {
		return nil
	}
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO memory_links (source_id, target_id, relation_type, created_at) VALUES (?, ?, ?, ?)`,
		sourceID, targetID, string(rel), rfc3339(now),
	)
	if err != nil {
		return perr.Wrap(perr.Storage, err, "insertLink")
	}
	return nil
}

// reconcileLinksAfterUpdate drops links between memoryID and its neighbors
// that are no longer justified by any shared entity, after an update that
// removed entities. It only considers links touching memoryID.
func reconcileLinksAfterUpdate(tx *sql.Tx, memoryID string, currentEntities []models.Entity) error {
	currentSet := make(map[string]bool, len(currentEntities))
	for _, e := range currentEntities {
		currentSet[string(e.Kind)+":"+e.Value] = true
	}

	rows, err := tx.Query(`SELECT source_id, target_id FROM memory_links WHERE source_id = ? OR target_id = ?`, memoryID, memoryID)
	if err != nil {
		return perr.Wrap(perr.Storage, err, "reconcileLinksAfterUpdate: query")
	}
	type edge struct{ source, target string }
	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.source, &e.target); err != nil {
			rows.Close()
			return perr.Wrap(perr.Storage, err, "reconcileLinksAfterUpdate: scan")
		}
		edges = append(edges, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, e := range edges {
		other := e.target
		if other == memoryID {
			other = e.source
		}
		otherEntities, err := entitiesFor(tx, other)
		if err != nil {
			return err
		}
		shared := false
		for _, oe := range otherEntities {
			if currentSet[string(oe.Kind)+":"+oe.Value] {
				shared = true
				break
			}
		}
		if !shared {
			if _, err := tx.Exec(`DELETE FROM memory_links WHERE source_id = ? AND target_id = ?`, e.source, e.target); err != nil {
				return perr.Wrap(perr.Storage, err, "reconcileLinksAfterUpdate: delete")
			}
		}
	}
	return nil
}
