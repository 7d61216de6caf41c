package entity_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/entity"
	"github.com/go-ports/memorypilot/internal/models"
)

func hasEntity(entities []models.Entity, kind models.EntityKind, value string) bool {
	for _, e := range entities {
		if e.Kind == kind && e.Value == value {
			return true
		}
	}
	return false
}

func TestExtract_TechToken(t *testing.T) {
	c := qt.New(t)
	got := entity.Extract("sqlite FTS5 setup in src/db.rs", "")
	c.Assert(hasEntity(got, models.EntityTech, "sqlite"), qt.IsTrue)
	c.Assert(hasEntity(got, models.EntityTech, "fts5"), qt.IsTrue)
}

func TestExtract_FilePath(t *testing.T) {
	c := qt.New(t)
	got := entity.Extract("sqlite FTS5 setup in src/db.rs", "")
	c.Assert(hasEntity(got, models.EntityFile, "src/db.rs"), qt.IsTrue)
}

func TestExtract_ComponentCamelCase(t *testing.T) {
	c := qt.New(t)
	got := entity.Extract("UserAuth flow is OAuth-only", "")
	c.Assert(hasEntity(got, models.EntityComponent, "userauth"), qt.IsTrue)
}

func TestExtract_QuotedComponent(t *testing.T) {
	c := qt.New(t)
	got := entity.Extract(`module "src/db.rs" handles storage`, "")
	c.Assert(hasEntity(got, models.EntityComponent, "src/db.rs"), qt.IsTrue)
}

func TestExtract_ProjectRef(t *testing.T) {
	c := qt.New(t)
	got := entity.Extract("plain content", "mp")
	c.Assert(hasEntity(got, models.EntityProject, "mp"), qt.IsTrue)
}

func TestExtract_NoProjectWhenEmpty(t *testing.T) {
	c := qt.New(t)
	got := entity.Extract("plain content", "")
	c.Assert(hasEntity(got, models.EntityProject, ""), qt.IsFalse)
}

func TestExtract_Deduplicated(t *testing.T) {
	c := qt.New(t)
	got := entity.Extract("rust rust RUST backend in rust", "")
	count := 0
	for _, e := range got {
		if e.Kind == models.EntityTech && e.Value == "rust" {
			count++
		}
	}
	c.Assert(count, qt.Equals, 1)
}

func TestExtract_WordBoundary(t *testing.T) {
	c := qt.New(t)
	got := entity.Extract("we are going to the store", "")
	c.Assert(hasEntity(got, models.EntityTech, "go"), qt.IsFalse)
}

func TestInferRelation_Table(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name string
		src  models.Kind
		tgt  models.Kind
		want models.RelationType
	}{
		{"decision resolves bug", models.KindDecision, models.KindBug, models.RelationResolves},
		{"decision refines decision", models.KindDecision, models.KindDecision, models.RelationRefines},
		{"pattern implements decision", models.KindPattern, models.KindDecision, models.RelationImplements},
		{"snippet implements pattern", models.KindSnippet, models.KindPattern, models.RelationImplements},
		{"unlisted pair defaults relates_to", models.KindBug, models.KindTodo, models.RelationRelatesTo},
		{"decision to pattern defaults relates_to", models.KindDecision, models.KindPattern, models.RelationRelatesTo},
	}

	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			c.Assert(entity.InferRelation(tc.src, tc.tgt), qt.Equals, tc.want)
		})
	}
}

func TestSupersedes_SameKindSharedEntity(t *testing.T) {
	c := qt.New(t)
	older := []models.Entity{{Kind: models.EntityTech, Value: "rust"}}
	newer := []models.Entity{{Kind: models.EntityTech, Value: "rust"}, {Kind: models.EntityTech, Value: "go"}}
	c.Assert(entity.Supersedes(models.KindDecision, models.KindDecision, newer, older), qt.IsTrue)
}

func TestSupersedes_DifferentKindNeverSupersedes(t *testing.T) {
	c := qt.New(t)
	older := []models.Entity{{Kind: models.EntityTech, Value: "rust"}}
	newer := []models.Entity{{Kind: models.EntityTech, Value: "rust"}}
	c.Assert(entity.Supersedes(models.KindDecision, models.KindBug, newer, older), qt.IsFalse)
}

func TestSupersedes_WrongKindNeverSupersedes(t *testing.T) {
	c := qt.New(t)
	older := []models.Entity{{Kind: models.EntityTech, Value: "rust"}}
	newer := []models.Entity{{Kind: models.EntityTech, Value: "rust"}}
	c.Assert(entity.Supersedes(models.KindBug, models.KindBug, newer, older), qt.IsFalse)
}

func TestSupersedes_NoSharedEntities(t *testing.T) {
	c := qt.New(t)
	older := []models.Entity{{Kind: models.EntityTech, Value: "rust"}}
	newer := []models.Entity{{Kind: models.EntityTech, Value: "go"}}
	c.Assert(entity.Supersedes(models.KindDecision, models.KindDecision, newer, older), qt.IsFalse)
}
