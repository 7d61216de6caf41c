package recall_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/brain"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/recall"
	"github.com/go-ports/memorypilot/internal/storage"
)

func TestBuild_ComposesGlobalPromptAndBrain(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()
	s, err := storage.Open(filepath.Join(dir, "test.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = s.Close() })

	err = s.RegisterProject("svc", filepath.Join(dir, "svc"), "")
	c.Assert(err, qt.IsNil)
	_, err = s.Add(storage.AddInput{Content: "uses go and redis", Kind: models.KindFact, Project: "svc"})
	c.Assert(err, qt.IsNil)

	err = os.WriteFile(filepath.Join(dir, "GLOBAL_PROMPT.md"), []byte("# house rules\nbe terse"), 0o644)
	c.Assert(err, qt.IsNil)

	agg := brain.New(s)
	r := recall.New(s, agg, dir)

	doc, err := r.Build(filepath.Join(dir, "svc", "internal", "foo"))
	c.Assert(err, qt.IsNil)
	c.Assert(doc.Project, qt.Equals, "svc")
	c.Assert(doc.GlobalPrompt, qt.Equals, "# house rules\nbe terse")
	c.Assert(doc.Brain, qt.Not(qt.IsNil))
}

func TestBuild_MissingGlobalPromptIsEmptyNotError(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()
	s, err := storage.Open(filepath.Join(dir, "test.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = s.Close() })

	agg := brain.New(s)
	r := recall.New(s, agg, dir)

	doc, err := r.Build("")
	c.Assert(err, qt.IsNil)
	c.Assert(doc.GlobalPrompt, qt.Equals, "")
	c.Assert(doc.Project, qt.Equals, "")
}
