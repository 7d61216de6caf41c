// Package entity implements the knowledge-graph entity extractor and the
// relation inferrer: detecting tech tokens, file paths, components, and
// project references inside memory content, and picking a relation type
// between two memory kinds.
package entity

import (
	"regexp"
	"strings"

	"github.com/go-ports/memorypilot/internal/models"
)

// techLexicon is the curated, case-insensitive set of technology tokens
// recognized inside memory content. Compiled once at package init, the same
// way the rest of this repo compiles its pattern lists up front.
var techLexicon = map[string]bool{
	"rust": true, "go": true, "golang": true, "python": true, "typescript": true,
	"javascript": true, "java": true, "kotlin": true, "swift": true, "c++": true,
	"sqlite": true, "postgres": true, "postgresql": true, "mysql": true,
	"redis": true, "mongodb": true, "bm25": true, "fts5": true, "grpc": true,
	"graphql": true, "react": true, "vue": true, "svelte": true, "angular": true,
	"docker": true, "kubernetes": true, "k8s": true, "terraform": true,
	"aws": true, "gcp": true, "azure": true, "kafka": true, "rabbitmq": true,
	"webassembly": true, "wasm": true, "webrtc": true, "websocket": true,
	"oauth": true, "jwt": true, "tailwind": true, "nextjs": true, "next.js": true,
	"node": true, "nodejs": true, "deno": true, "bun": true, "cobra": true,
	"fsnotify": true, "protobuf": true, "yaml": true, "json": true, "toml": true,
}

// filePathRe matches ident(/ident)+.ext or ./rel/path style file references.
var filePathRe = regexp.MustCompile(`(?:\.{1,2}/)?[\w.-]+(?:/[\w.-]+)+\.\w+|\b[\w-]+\.(?:go|rs|ts|tsx|js|jsx|py|rb|java|c|h|cpp|hpp|sql|yaml|yml|json|toml|md)\b`)

// componentCamelRe matches CamelCase identifiers of two or more segments
// (e.g. UserAuth, FileWatcher).
var componentCamelRe = regexp.MustCompile(`\b[A-Z][a-z0-9]+(?:[A-Z][a-z0-9]*){1,}\b`)

// componentQuotedRe matches quoted module-style paths (e.g. "src/db.rs").
var componentQuotedRe = regexp.MustCompile(`"([\w./-]+)"`)

// Extract detects tech, file, component, and project entities inside
// content, deduplicated within this single extraction.
func Extract(content, project string) []models.Entity {
	seen := make(map[string]bool)
	var out []models.Entity

	add := func(kind models.EntityKind, value string) {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			return
		}
		key := string(kind) + ":" + value
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, models.Entity{Kind: kind, Value: value})
	}

	lowerContent := strings.ToLower(content)
	for tok := range techLexicon {
		if containsWord(lowerContent, tok) {
			add(models.EntityTech, tok)
		}
	}

	for _, m := range filePathRe.FindAllString(content, -1) {
		add(models.EntityFile, m)
	}

	for _, m := range componentCamelRe.FindAllString(content, -1) {
		add(models.EntityComponent, m)
	}
	for _, m := range componentQuotedRe.FindAllStringSubmatch(content, -1) {
		add(models.EntityComponent, m[1])
	}

	if project != "" {
		add(models.EntityProject, project)
	}

	return out
}

// containsWord reports whether needle occurs in haystack as a standalone
// token (bounded by non-alphanumeric characters or string edges), so "go"
// does not match inside "going".
func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], needle)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(needle)
		beforeOK := start == 0 || !isAlnum(haystack[start-1])
		afterOK := end == len(haystack) || !isAlnum(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// relationTable implements the source-kind/target-kind relation lookup;
// unlisted cells default to relates_to.
var relationTable = map[models.Kind]map[models.Kind]models.RelationType{
	models.KindDecision: {
		models.KindBug:      models.RelationResolves,
		models.KindDecision: models.RelationRefines,
	},
	models.KindPattern: {
		models.KindDecision: models.RelationImplements,
	},
	models.KindSnippet: {
		models.KindPattern: models.RelationImplements,
	},
}

// InferRelation picks the relation type for an edge from a memory of srcKind
// to a memory of tgtKind, defaulting to relates_to for unlisted pairs.
func InferRelation(srcKind, tgtKind models.Kind) models.RelationType {
	if byTarget, ok := relationTable[srcKind]; ok {
		if rel, ok := byTarget[tgtKind]; ok {
			return rel
		}
	}
	return models.RelationRelatesTo
}

// Supersedes reports whether newer memory should be linked to older via
// deprecates: same kind, kind is one that can supersede (decision or
// pattern), newer actually postdates older, and the two memories share at
// least one extracted entity (the "obviously supersedes" test from §4.2).
func Supersedes(newerKind, olderKind models.Kind, newerEntities, olderEntities []models.Entity) bool {
	if newerKind != olderKind {
		return false
	}
	if newerKind != models.KindDecision && newerKind != models.KindPattern {
		return false
	}
	olderSet := make(map[string]bool, len(olderEntities))
	for _, e := range olderEntities {
		olderSet[string(e.Kind)+":"+e.Value] = true
	}
	for _, e := range newerEntities {
		if olderSet[string(e.Kind)+":"+e.Value] {
			return true
		}
	}
	return false
}
