package export_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/export"
	"github.com/go-ports/memorypilot/internal/models"
)

func sampleMemories() []*models.Memory {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return []*models.Memory{
		{ID: "a", Content: "fact one", Kind: models.KindFact, Importance: 4, CreatedAt: now, UpdatedAt: now, Tags: []string{"x"}},
		{ID: "b", Content: "note one", Kind: models.KindNote, Importance: 2, CreatedAt: now, UpdatedAt: now.Add(time.Hour)},
		{ID: "c", Content: "note two", Kind: models.KindNote, Importance: 5, CreatedAt: now, UpdatedAt: now.Add(2 * time.Hour)},
	}
}

func TestJSON_StableFields(t *testing.T) {
	c := qt.New(t)
	data, err := export.JSON(sampleMemories())
	c.Assert(err, qt.IsNil)

	var decoded []export.ExportedMemory
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(len(decoded), qt.Equals, 3)
	c.Assert(decoded[0].ID, qt.Equals, "a")
	c.Assert(decoded[0].Kind, qt.Equals, "fact")
}

func TestMarkdown_GroupsByKindWithStarRating(t *testing.T) {
	c := qt.New(t)
	out := export.Markdown(sampleMemories())

	c.Assert(strings.Contains(out, "## Fact"), qt.IsTrue)
	c.Assert(strings.Contains(out, "## Note"), qt.IsTrue)
	c.Assert(strings.Contains(out, "★★★★☆"), qt.IsTrue) // importance 4
	c.Assert(strings.Contains(out, "★★★★★"), qt.IsTrue) // importance 5

	noteIdx := strings.Index(out, "## Note")
	c.Assert(noteIdx, qt.Not(qt.Equals), -1)
	cIdx := strings.Index(out[noteIdx:], "### c")
	bIdx := strings.Index(out[noteIdx:], "### b")
	c.Assert(cIdx >= 0 && bIdx >= 0 && cIdx < bIdx, qt.IsTrue)
}
