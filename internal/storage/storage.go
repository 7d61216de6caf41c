// Package storage implements MemoryPilot's schema init/upgrade, CRUD, FTS
// mirror, entity/link maintenance, and access tracking: the storage core,
// grounded on go-ports/echovault's single-exclusive-connection SQLite idiom
// (internal/db).
package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
)

// SchemaVersion is the current schema version written to config on init and
// after every additive upgrade.
const SchemaVersion = "1"

// Store wraps a single exclusive *sql.DB connection, serialised by mu: one
// process-local mutex guarding all writes.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex

	redactPatterns []*regexp.Regexp
}

// SetRedactionPatterns installs additional caller-supplied patterns (e.g.
// from a .memoryignore file) applied on top of the built-in secret patterns
// every write redacts content against.
func (s *Store) SetRedactionPatterns(patterns []*regexp.Regexp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redactPatterns = patterns
}

// Open opens (or creates) the SQLite database at path with WAL enabled and
// initialises the schema.
func Open(path string) (*Store, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "storage.Open")
	}
	// A single exclusive connection: writes are already serialised by mu,
	// and SQLite's own writer lock does not tolerate concurrent connections
	// well under WAL for this access pattern.
	sqldb.SetMaxOpenConns(1)

	s := &Store{db: sqldb, path: path}
	if err := s.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, perr.Wrap(perr.Storage, err, "storage.Open: createSchema")
	}
	return s, nil
}

// Close closes the underlying database connection, committing any
// in-flight transaction as part of a clean shutdown.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path the store was opened from.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id               TEXT PRIMARY KEY,
			content          TEXT NOT NULL,
			kind             TEXT NOT NULL,
			project          TEXT,
			tags             TEXT NOT NULL DEFAULT '[]',
			importance       INTEGER NOT NULL DEFAULT 3,
			created_at       TEXT NOT NULL,
			updated_at       TEXT NOT NULL,
			expires_at       TEXT,
			last_accessed_at TEXT,
			access_count     INTEGER NOT NULL DEFAULT 0,
			embedding        BLOB,
			metadata         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			content, tags, kind, project,
			content='memories', content_rowid='rowid',
			tokenize='porter unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS memories_ai AFTER INSERT ON memories BEGIN
			INSERT INTO memories_fts(rowid, content, tags, kind, project)
			VALUES (new.rowid, new.content, new.tags, new.kind, new.project);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_au AFTER UPDATE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, tags, kind, project)
			VALUES ('delete', old.rowid, old.content, old.tags, old.kind, old.project);
			INSERT INTO memories_fts(rowid, content, tags, kind, project)
			VALUES (new.rowid, new.content, new.tags, new.kind, new.project);
		END`,
		`CREATE TRIGGER IF NOT EXISTS memories_ad AFTER DELETE ON memories BEGIN
			INSERT INTO memories_fts(memories_fts, rowid, content, tags, kind, project)
			VALUES ('delete', old.rowid, old.content, old.tags, old.kind, old.project);
		END`,
		`CREATE TABLE IF NOT EXISTS memory_entities (
			memory_id    TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			entity_kind  TEXT NOT NULL,
			entity_value TEXT NOT NULL,
			PRIMARY KEY (memory_id, entity_kind, entity_value)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_links (
			source_id     TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			target_id     TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
			relation_type TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			PRIMARY KEY (source_id, target_id)
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			name        TEXT PRIMARY KEY,
			path        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS config (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS term_doc_freq (
			term TEXT PRIMARY KEY,
			df   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_entities_value ON memory_entities(entity_value)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_entities_memory ON memory_entities(memory_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_links_source ON memory_links(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_links_target ON memory_links(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_project ON memories(project)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_kind ON memories(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_updated_at ON memories(updated_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema stmt: %w\nSQL: %s", err, stmt)
		}
	}

	return s.upgradeSchema()
}

// upgradeSchema applies additive, idempotent version bumps: each checks for
// the presence of what it needs and applies it, then records the new
// schema_version in config. Currently a no-op beyond stamping version 1,
// but the shape is load-bearing for future ALTER/CREATE IF NOT EXISTS bumps.
func (s *Store) upgradeSchema() error {
	version, ok, err := s.GetConfig(models.ConfigSchemaVersion)
	if err != nil {
		return err
	}
	if ok && version == SchemaVersion {
		return nil
	}
	return s.SetConfig(models.ConfigSchemaVersion, SchemaVersion)
}
