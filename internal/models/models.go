// Package models defines the core data types for MemoryPilot's storage,
// search, and graph layers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies the semantic role of a memory.
type Kind string

const (
	KindFact       Kind = "fact"
	KindPreference Kind = "preference"
	KindDecision   Kind = "decision"
	KindPattern    Kind = "pattern"
	KindSnippet    Kind = "snippet"
	KindBug        Kind = "bug"
	KindCredential Kind = "credential"
	KindTodo       Kind = "todo"
	KindNote       Kind = "note"
)

// ValidKinds lists every accepted Kind value; unrecognized kinds are
// rejected by the storage layer.
var ValidKinds = []Kind{
	KindFact, KindPreference, KindDecision, KindPattern, KindSnippet,
	KindBug, KindCredential, KindTodo, KindNote,
}

// IsValidKind reports whether k is one of ValidKinds.
func IsValidKind(k Kind) bool {
	for _, v := range ValidKinds {
		if v == k {
			return true
		}
	}
	return false
}

// EntityKind classifies the kind of token extracted from memory content.
type EntityKind string

const (
	EntityTech      EntityKind = "tech"
	EntityFile      EntityKind = "file"
	EntityComponent EntityKind = "component"
	EntityProject   EntityKind = "project"
)

// RelationType classifies the directed edge between two memories.
type RelationType string

const (
	RelationRelatesTo  RelationType = "relates_to"
	RelationResolves   RelationType = "resolves"
	RelationImplements RelationType = "implements"
	RelationDependsOn  RelationType = "depends_on"
	RelationDeprecates RelationType = "deprecates"
	RelationRefines    RelationType = "refines"
)

// EmbeddingDims is the fixed dimensionality of the hash-TF–IDF surrogate
// vector. Stored embeddings are 0 bytes (missing) or exactly
// EmbeddingDims*4 bytes (little-endian float32 per dimension).
const EmbeddingDims = 384

// Memory is a single stored fact/decision/bug/etc, scoped to an optional
// project.
type Memory struct {
	ID             string
	Content        string
	Kind           Kind
	Project        string // "" means global
	Tags           []string
	Importance     int // 1..5
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt *time.Time
	AccessCount    int
	ExpiresAt      *time.Time
	Embedding      []float32 // nil or len == EmbeddingDims
	Metadata       string    // opaque caller-defined JSON
}

// IsExpired reports whether the memory's expires_at is set and in the past
// relative to now.
func (m *Memory) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}

// Entity is a (memory_id, kind, value) triple extracted from a memory's
// content.
type Entity struct {
	MemoryID string
	Kind     EntityKind
	Value    string
}

// Link is a directed edge between two distinct memories.
type Link struct {
	SourceID     string
	TargetID     string
	RelationType RelationType
	CreatedAt    time.Time
}

// Project registers a name/path/description triple used for working-directory
// auto-detection.
type Project struct {
	Name        string
	Path        string
	Description string
}

// Reserved config keys in the key/value config table.
const (
	ConfigGlobalPromptPath = "global_prompt_path"
	ConfigLastGCAt         = "last_gc_at"
	ConfigSchemaVersion    = "schema_version"
)

// NewID generates a new random identifier for a Memory or Project row.
func NewID() string {
	return uuid.NewString()
}
