// Package export renders a set of memories as JSON or Markdown, grounded on
// go-ports/echovault's internal/markdown section-rendering idiom
// (RenderSection, createNewSessionFile), generalized here from "session
// file" to "export document".
package export

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-ports/memorypilot/internal/models"
)

// ExportedMemory is the stable, typed JSON shape for one exported memory.
// Field order is fixed by the struct rather than a map, mirroring
// go-ports/echovault's preference for typed marshalling over
// jsonResult-style maps.
type ExportedMemory struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Kind       string   `json:"kind"`
	Project    string   `json:"project,omitempty"`
	Tags       []string `json:"tags"`
	Importance int      `json:"importance"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

func toExported(m *models.Memory) ExportedMemory {
	return ExportedMemory{
		ID:         m.ID,
		Content:    m.Content,
		Kind:       string(m.Kind),
		Project:    m.Project,
		Tags:       m.Tags,
		Importance: m.Importance,
		CreatedAt:  m.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:  m.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// JSON renders memories as a JSON array of ExportedMemory, in the order
// given.
func JSON(memories []*models.Memory) ([]byte, error) {
	out := make([]ExportedMemory, len(memories))
	for i, m := range memories {
		out[i] = toExported(m)
	}
	return json.MarshalIndent(out, "", "  ")
}

// kindOrder fixes the heading order for Markdown export, following the
// models.ValidKinds declaration order.
var kindOrder = models.ValidKinds

// Markdown renders memories grouped by kind, each group an H2 heading and
// each memory an H3 block with a star-rating importance line.
func Markdown(memories []*models.Memory) string {
	byKind := make(map[models.Kind][]*models.Memory)
	for _, m := range memories {
		byKind[m.Kind] = append(byKind[m.Kind], m)
	}

	var sb strings.Builder
	sb.WriteString("# Exported memories\n")

	for _, kind := range kindOrder {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].UpdatedAt.After(group[j].UpdatedAt) })

		sb.WriteString("\n## ")
		sb.WriteString(capitalize(string(kind)))
		sb.WriteString("\n")
		for _, m := range group {
			sb.WriteString("\n")
			sb.WriteString(renderSection(m))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// renderSection produces a single ### heading block for a memory.
func renderSection(m *models.Memory) string {
	var sb strings.Builder
	sb.WriteString("### ")
	sb.WriteString(m.ID)
	sb.WriteString("\n")
	sb.WriteString(starRating(m.Importance))
	if m.Project != "" {
		sb.WriteString("\n**Project:** ")
		sb.WriteString(m.Project)
	}
	if len(m.Tags) > 0 {
		sb.WriteString("\n**Tags:** ")
		sb.WriteString(strings.Join(m.Tags, ", "))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.Content)
	return sb.String()
}

// capitalize upper-cases the first rune of s, leaving the rest unchanged.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// starRating renders importance (1..5) as a five-character star bar.
func starRating(importance int) string {
	if importance < 1 {
		importance = 1
	}
	if importance > 5 {
		importance = 5
	}
	return strings.Repeat("★", importance) + strings.Repeat("☆", 5-importance)
}
