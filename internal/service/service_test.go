package service_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/gc"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/search"
	"github.com/go-ports/memorypilot/internal/service"
	"github.com/go-ports/memorypilot/internal/storage"
)

func newService(c *qt.C) *service.Service {
	svc, err := service.New(c.Mkdir())
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestNew_CreatesHomeAndDatabase(t *testing.T) {
	c := qt.New(t)
	home := c.Mkdir()
	svc, err := service.New(home)
	c.Assert(err, qt.IsNil)
	defer svc.Close()

	_, statErr := os.Stat(svc.DBPath())
	c.Assert(statErr, qt.IsNil)
}

func TestAddAndGetMemory_RoundTrips(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	res, err := svc.AddMemory(storage.AddInput{
		Content: "uses postgres as the primary datastore", Kind: models.KindFact, Project: "acme",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(res.WasDeduped, qt.IsFalse)

	mem, err := svc.GetMemory(res.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(mem.Content, qt.Equals, "uses postgres as the primary datastore")
}

func TestSearchMemory_FindsByKeyword(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	_, err := svc.AddMemory(storage.AddInput{
		Content: "the redis cache layer evicts on LRU", Kind: models.KindNote, Project: "acme",
	})
	c.Assert(err, qt.IsNil)

	results, err := svc.SearchMemory(search.Query{Text: "redis cache", Project: "acme"})
	c.Assert(err, qt.IsNil)
	c.Assert(len(results) > 0, qt.IsTrue)
}

func TestGetProjectBrain_ReflectsAddedDecision(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	_, err := svc.AddMemory(storage.AddInput{
		Content: "chose sqlite over postgres for embeddability", Kind: models.KindDecision,
		Project: "acme", Importance: 4,
	})
	c.Assert(err, qt.IsNil)

	b, err := svc.GetProjectBrain("acme")
	c.Assert(err, qt.IsNil)
	c.Assert(b.Project, qt.Equals, "acme")
	c.Assert(len(b.CoreArchitecture), qt.Equals, 1)
}

func TestGetProjectContext_ExplicitProjectWinsOverWorkingDir(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	_, err := svc.AddMemory(storage.AddInput{Content: "fact for acme", Kind: models.KindFact, Project: "acme"})
	c.Assert(err, qt.IsNil)

	doc, err := svc.GetProjectContext("acme", "/some/unrelated/dir")
	c.Assert(err, qt.IsNil)
	c.Assert(doc.Project, qt.Equals, "acme")
}

func TestGetFileContext_DerivesKeywordsFromFilename(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	_, err := svc.AddMemory(storage.AddInput{
		Content: "the user auth handler validates session tokens", Kind: models.KindNote,
	})
	c.Assert(err, qt.IsNil)

	fc, err := svc.GetFileContext("UserAuthHandler.go", "")
	c.Assert(err, qt.IsNil)
	c.Assert(fc.Keywords, qt.Contains, "user")
	c.Assert(fc.Keywords, qt.Contains, "auth")
	c.Assert(fc.Keywords, qt.Contains, "handler")
}

func TestRegisterAndListProjects(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	c.Assert(svc.RegisterProject("acme", "/work/acme", "acme project"), qt.IsNil)

	projects, err := svc.ListProjects()
	c.Assert(err, qt.IsNil)
	c.Assert(len(projects), qt.Equals, 1)
	c.Assert(projects[0].Name, qt.Equals, "acme")
}

func TestExportMemories_JSONAndMarkdown(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	_, err := svc.AddMemory(storage.AddInput{Content: "export me please", Kind: models.KindNote})
	c.Assert(err, qt.IsNil)

	jsonOut, err := svc.ExportMemories("json", storage.ListFilter{})
	c.Assert(err, qt.IsNil)
	c.Assert(jsonOut, qt.Contains, "export me please")

	mdOut, err := svc.ExportMemories("markdown", storage.ListFilter{})
	c.Assert(err, qt.IsNil)
	c.Assert(mdOut, qt.Contains, "## Note")

	_, err = svc.ExportMemories("xml", storage.ListFilter{})
	c.Assert(err, qt.IsNotNil)
}

func TestRunGC_UsesPersistedDefaultsWhenUnset(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	report, err := svc.RunGC(gc.Config{DryRun: true})
	c.Assert(err, qt.IsNil)
	c.Assert(report.DryRun, qt.IsTrue)
}

func TestMigrateV1_ImportsIntoServiceStorage(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	dir := c.Mkdir()
	path := filepath.Join(dir, "v1.json")
	c.Assert(os.WriteFile(path, []byte(`[{"content":"legacy note","kind":"note","project":"acme"}]`), 0o644), qt.IsNil)

	report, err := svc.MigrateV1(path)
	c.Assert(err, qt.IsNil)
	c.Assert(report.Imported, qt.Equals, 1)

	list, err := svc.ListMemories(storage.ListFilter{Project: "acme"})
	c.Assert(err, qt.IsNil)
	c.Assert(len(list), qt.Equals, 1)
}

func TestGetGlobalPrompt_ReadsFileFromHome(t *testing.T) {
	c := qt.New(t)
	home := c.Mkdir()
	c.Assert(os.WriteFile(filepath.Join(home, "GLOBAL_PROMPT.md"), []byte("always write tests"), 0o644), qt.IsNil)

	svc, err := service.New(home)
	c.Assert(err, qt.IsNil)
	defer svc.Close()

	prompt, err := svc.GetGlobalPrompt()
	c.Assert(err, qt.IsNil)
	c.Assert(prompt, qt.Equals, "always write tests")
}

func TestNew_LoadsMemoryIgnorePatternsFromHome(t *testing.T) {
	c := qt.New(t)
	home := c.Mkdir()
	c.Assert(os.WriteFile(filepath.Join(home, ".memoryignore"), []byte("internal-[0-9a-f]+\n"), 0o644), qt.IsNil)

	svc, err := service.New(home)
	c.Assert(err, qt.IsNil)
	defer svc.Close()

	res, err := svc.AddMemory(storage.AddInput{Content: "ref=internal-cafebabe", Kind: models.KindNote})
	c.Assert(err, qt.IsNil)

	mem, err := svc.GetMemory(res.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(mem.Content, qt.Contains, "[REDACTED]")
}

func TestRelatedMemories_FindsLinkedBug(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	bug, err := svc.AddMemory(storage.AddInput{
		Content: "crash in checkout.go when cart is empty", Kind: models.KindBug, Project: "acme",
	})
	c.Assert(err, qt.IsNil)

	decision, err := svc.AddMemory(storage.AddInput{
		Content: "decided to guard checkout.go against empty carts", Kind: models.KindDecision, Project: "acme",
	})
	c.Assert(err, qt.IsNil)

	related, err := svc.RelatedMemories(bug.ID, 1)
	c.Assert(err, qt.IsNil)

	found := false
	for _, r := range related {
		if r.MemoryID == decision.ID {
			found = true
		}
	}
	c.Assert(found, qt.IsTrue)
}
