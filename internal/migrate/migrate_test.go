package migrate_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/export"
	"github.com/go-ports/memorypilot/internal/migrate"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/storage"
)

func openStore(c *qt.C) *storage.Store {
	dir := c.Mkdir()
	store, err := storage.Open(filepath.Join(dir, "memory.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = store.Close() })
	return store
}

const sampleV1 = `[
	{"id":"old-1","content":"uses postgres for storage","kind":"fact","project":"acme","tags":["db"],"importance":4,"created_at":"2024-01-02T03:04:05Z"},
	{"id":"old-2","content":"unknown kind record","kind":"bogus","project":"acme","importance":2,"created_at":"2024-01-02T03:04:05Z"},
	{"id":"old-3","content":"","kind":"note","project":"acme"}
]`

func TestRun_ImportsValidRecordsAndSkipsInvalid(t *testing.T) {
	c := qt.New(t)
	store := openStore(c)

	dir := c.Mkdir()
	path := filepath.Join(dir, "v1-export.json")
	c.Assert(os.WriteFile(path, []byte(sampleV1), 0o644), qt.IsNil)

	report, err := migrate.Run(store, path)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Imported, qt.Equals, 1)
	c.Assert(report.Skipped, qt.Equals, 2)
	c.Assert(report.Deduped, qt.Equals, 0)
}

func TestRun_ReRunDedupesAgainstPriorImport(t *testing.T) {
	c := qt.New(t)
	store := openStore(c)

	dir := c.Mkdir()
	path := filepath.Join(dir, "v1-export.json")
	c.Assert(os.WriteFile(path, []byte(sampleV1), 0o644), qt.IsNil)

	_, err := migrate.Run(store, path)
	c.Assert(err, qt.IsNil)

	report, err := migrate.Run(store, path)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Deduped, qt.Equals, 1)
	c.Assert(report.Imported, qt.Equals, 0)
}

func TestRun_PreservesOriginalIDs(t *testing.T) {
	c := qt.New(t)
	store := openStore(c)

	dir := c.Mkdir()
	path := filepath.Join(dir, "v1-export.json")
	c.Assert(os.WriteFile(path, []byte(sampleV1), 0o644), qt.IsNil)

	report, err := migrate.Run(store, path)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Imported, qt.Equals, 1)

	mem, err := store.Get("old-1")
	c.Assert(err, qt.IsNil)
	c.Assert(mem.Content, qt.Equals, "uses postgres for storage")
}

func TestRun_ExportThenMigrateRoundTripsIDsAndContents(t *testing.T) {
	c := qt.New(t)
	src := openStore(c)

	_, err := src.Add(storage.AddInput{Content: "round trip note one", Kind: models.KindNote, Project: "acme"})
	c.Assert(err, qt.IsNil)
	_, err = src.Add(storage.AddInput{Content: "round trip note two", Kind: models.KindFact, Project: "acme"})
	c.Assert(err, qt.IsNil)

	memories, err := src.List(storage.ListFilter{Project: "acme"})
	c.Assert(err, qt.IsNil)
	c.Assert(len(memories), qt.Equals, 2)

	data, err := export.JSON(memories)
	c.Assert(err, qt.IsNil)

	dir := c.Mkdir()
	path := filepath.Join(dir, "export.json")
	c.Assert(os.WriteFile(path, data, 0o644), qt.IsNil)

	dst := openStore(c)
	report, err := migrate.Run(dst, path)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Imported, qt.Equals, 2)

	for _, m := range memories {
		got, err := dst.Get(m.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Content, qt.Equals, m.Content)
	}
}

func TestRun_MissingFileReturnsError(t *testing.T) {
	c := qt.New(t)
	store := openStore(c)

	_, err := migrate.Run(store, filepath.Join(c.Mkdir(), "missing.json"))
	c.Assert(err, qt.IsNotNil)
}
