package brain_test

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/brain"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/storage"
)

func openTestStore(c *qt.C) *storage.Store {
	dir := c.Mkdir()
	s, err := storage.Open(filepath.Join(dir, "test.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBuild_CollectsTechStackAndComponents(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	_, err := s.Add(storage.AddInput{
		Content: "we use go and postgres for the AuthService, see auth/service.go",
		Kind:    models.KindFact,
		Project: "p",
	})
	c.Assert(err, qt.IsNil)

	agg := brain.New(s)
	b, err := agg.Build("p")
	c.Assert(err, qt.IsNil)
	c.Assert(b.Project, qt.Equals, "p")
	c.Assert(contains(b.TechStack, "go"), qt.IsTrue)
	c.Assert(contains(b.TechStack, "postgres"), qt.IsTrue)
	c.Assert(len(b.KeyComponents) > 0, qt.IsTrue)
}

func TestBuild_ActiveBugsExcludesExpired(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	_, err := s.Add(storage.AddInput{Content: "nil pointer in the handler when payload is empty", Kind: models.KindBug, Project: "p", Importance: 4})
	c.Assert(err, qt.IsNil)

	agg := brain.New(s)
	b, err := agg.Build("p")
	c.Assert(err, qt.IsNil)
	c.Assert(len(b.ActiveBugs), qt.Equals, 1)
}

func TestBuild_PreferencesIncludeGlobalScope(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	_, err := s.Add(storage.AddInput{Content: "always use tabs for indentation in this codebase", Kind: models.KindPreference, Importance: 4})
	c.Assert(err, qt.IsNil)
	_, err = s.Add(storage.AddInput{Content: "prefer small pull requests scoped to one project", Kind: models.KindPreference, Project: "p", Importance: 4})
	c.Assert(err, qt.IsNil)

	agg := brain.New(s)
	b, err := agg.Build("p")
	c.Assert(err, qt.IsNil)
	c.Assert(len(b.PreferencesAndPatterns) >= 2, qt.IsTrue)
}

func TestBuild_NoProjectResolvesGlobalSlice(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	_, err := s.Add(storage.AddInput{Content: "a globally scoped fact about the team process", Kind: models.KindFact})
	c.Assert(err, qt.IsNil)

	agg := brain.New(s)
	b, err := agg.Build("")
	c.Assert(err, qt.IsNil)
	c.Assert(b.Project, qt.Equals, "")
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
