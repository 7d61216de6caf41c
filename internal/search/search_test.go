package search_test

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/search"
	"github.com/go-ports/memorypilot/internal/storage"
)

func openTestStore(c *qt.C) *storage.Store {
	dir := c.Mkdir()
	s, err := storage.Open(filepath.Join(dir, "test.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSearch_FindsLexicalMatch(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	res, err := s.Add(storage.AddInput{
		Content: "the rate limiter uses a token bucket algorithm",
		Kind:    models.KindPattern,
		Project: "p",
	})
	c.Assert(err, qt.IsNil)
	_, err = s.Add(storage.AddInput{Content: "unrelated note about lunch plans", Kind: models.KindNote, Project: "p"})
	c.Assert(err, qt.IsNil)

	eng := search.New(s, nil)
	results, err := eng.Search(search.Query{Text: "token bucket rate limiter", Project: "p", K: 5})
	c.Assert(err, qt.IsNil)
	c.Assert(len(results) >= 1, qt.IsTrue)
	c.Assert(results[0].Memory.ID, qt.Equals, res.ID)
}

func TestSearch_EmptyQueryOrdersByImportanceThenRecency(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	low, err := s.Add(storage.AddInput{Content: "low importance note", Kind: models.KindNote, Project: "p", Importance: 1})
	c.Assert(err, qt.IsNil)
	high, err := s.Add(storage.AddInput{Content: "high importance note", Kind: models.KindNote, Project: "p", Importance: 5})
	c.Assert(err, qt.IsNil)
	_ = low

	eng := search.New(s, nil)
	results, err := eng.Search(search.Query{Text: "", Project: "p", K: 10})
	c.Assert(err, qt.IsNil)
	c.Assert(len(results) >= 2, qt.IsTrue)
	c.Assert(results[0].Memory.ID, qt.Equals, high.ID)
}

func TestSearch_NoMatchesReturnsEmptyNotError(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	_, err := s.Add(storage.AddInput{Content: "the quick brown fox", Kind: models.KindNote, Project: "p"})
	c.Assert(err, qt.IsNil)

	eng := search.New(s, nil)
	results, err := eng.Search(search.Query{Text: "zzqqxxnonexistentterm", Project: "p", K: 5})
	c.Assert(err, qt.IsNil)
	c.Assert(len(results), qt.Equals, 0)
}

func TestSearch_ExpiredMemoryDemotedNotExcluded(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	_, err := s.Add(storage.AddInput{Content: "connection pool sizing guidance for postgres", Kind: models.KindNote, Project: "p"})
	c.Assert(err, qt.IsNil)

	eng := search.New(s, nil)
	results, err := eng.Search(search.Query{Text: "connection pool sizing postgres", Project: "p", K: 5, IncludeExpired: true})
	c.Assert(err, qt.IsNil)
	c.Assert(len(results) >= 1, qt.IsTrue)
}

func TestSearch_RespectsKLimit(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	contents := []string{
		"widget configuration option alpha explained here",
		"widget configuration option beta documented thoroughly",
		"widget configuration option gamma has edge cases",
		"widget configuration option delta needs review",
		"widget configuration option epsilon is deprecated",
	}
	for _, content := range contents {
		_, err := s.Add(storage.AddInput{Content: content, Kind: models.KindFact, Project: "p"})
		c.Assert(err, qt.IsNil)
	}

	eng := search.New(s, nil)
	results, err := eng.Search(search.Query{Text: "widget configuration", Project: "p", K: 2})
	c.Assert(err, qt.IsNil)
	c.Assert(len(results) <= 2, qt.IsTrue)
}

func TestSearch_BumpsAccessCountForEveryResult(t *testing.T) {
	c := qt.New(t)
	s := openTestStore(c)

	_, err := s.Add(storage.AddInput{Content: "the scheduler uses a priority queue", Kind: models.KindFact, Project: "p"})
	c.Assert(err, qt.IsNil)

	eng := search.New(s, nil)
	results, err := eng.Search(search.Query{Text: "scheduler priority queue", Project: "p", K: 5})
	c.Assert(err, qt.IsNil)
	c.Assert(len(results) >= 1, qt.IsTrue)

	list, err := s.List(storage.ListFilter{Project: "p"})
	c.Assert(err, qt.IsNil)
	c.Assert(list[0].AccessCount, qt.Equals, 1)
}
