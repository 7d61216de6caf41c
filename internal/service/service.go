// Package service implements the Service orchestrator that wires together
// configuration, storage, search, the garbage collector, the file watcher
// registry, the project-brain aggregator, and the recall composer.
package service

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-ports/memorypilot/internal/brain"
	"github.com/go-ports/memorypilot/internal/config"
	"github.com/go-ports/memorypilot/internal/export"
	"github.com/go-ports/memorypilot/internal/gc"
	"github.com/go-ports/memorypilot/internal/migrate"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
	"github.com/go-ports/memorypilot/internal/recall"
	"github.com/go-ports/memorypilot/internal/redaction"
	"github.com/go-ports/memorypilot/internal/search"
	"github.com/go-ports/memorypilot/internal/storage"
	"github.com/go-ports/memorypilot/internal/watcher"
)

// Service orchestrates every MemoryPilot operation. One instance is
// constructed per process and passed explicitly to the MCP tool layer and
// CLI commands — never held as a package-level global — so tests can
// construct independent instances against their own temp directories.
type Service struct {
	Home   string
	Config *config.Config

	store    *storage.Store
	search   *search.Engine
	gc       *gc.Collector
	watchers *watcher.Registry
	brain    *brain.Aggregator
	recaller *recall.Recaller
}

// New initializes a Service rooted at home. If home is empty it is resolved
// via config.ResolveHome.
func New(home string) (*Service, error) {
	if home == "" {
		home = config.GetHome()
	}
	if err := config.EnsureHome(home); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "service.New: ensure home %s", home)
	}

	cfg, err := config.Load(config.ConfigPath(home))
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "service.New: load config")
	}

	store, err := storage.Open(config.DBPath(home))
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "service.New: open storage")
	}

	ignorePatterns, err := redaction.LoadMemoryIgnore(filepath.Join(home, ".memoryignore"))
	if err != nil {
		return nil, perr.Wrap(perr.InvalidArgument, err, "service.New: load .memoryignore")
	}
	store.SetRedactionPatterns(ignorePatterns)

	watchers := watcher.NewRegistry()
	engine := search.New(store, watchers)
	collector := gc.New(store)
	aggregator := brain.New(store)
	recaller := recall.New(store, aggregator, home)

	return &Service{
		Home:     home,
		Config:   cfg,
		store:    store,
		search:   engine,
		gc:       collector,
		watchers: watchers,
		brain:    aggregator,
		recaller: recaller,
	}, nil
}

// Close releases every resource the Service holds: running watchers and the
// database connection.
func (s *Service) Close() error {
	s.watchers.CloseAll()
	return s.store.Close()
}

// ---------------------------------------------------------------------------
// add_memory / add_memories
// ---------------------------------------------------------------------------

// AddMemory stores a single memory.
func (s *Service) AddMemory(in storage.AddInput) (*storage.AddResult, error) {
	return s.store.Add(in)
}

// AddMemories stores a batch of memories, never aborting the whole batch on
// a single item's failure.
func (s *Service) AddMemories(inputs []storage.AddInput) []storage.AddBulkResult {
	return s.store.AddBulk(inputs)
}

// ---------------------------------------------------------------------------
// search_memory
// ---------------------------------------------------------------------------

// SearchMemory runs the hybrid search engine.
func (s *Service) SearchMemory(q search.Query) ([]search.Result, error) {
	return s.search.Search(q)
}

// ---------------------------------------------------------------------------
// get_memory / update_memory / delete_memory / list_memories
// ---------------------------------------------------------------------------

// GetMemory fetches one memory by id, bumping its access tracking.
func (s *Service) GetMemory(id string) (*models.Memory, error) {
	return s.store.Get(id)
}

// RelatedMemories performs the breadth-first link traversal from id, up to
// depth hops (clamped to [1,2]).
func (s *Service) RelatedMemories(id string, depth int) ([]storage.RelatedEdge, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > 2 {
		depth = 2
	}
	return s.store.Related(id, depth)
}

// UpdateMemory mutates an existing memory.
func (s *Service) UpdateMemory(id string, in storage.UpdateInput) (*models.Memory, error) {
	return s.store.Update(id, in)
}

// DeleteMemory removes a memory by id.
func (s *Service) DeleteMemory(id string) error {
	return s.store.Delete(id)
}

// ListMemories pages through memories matching a filter.
func (s *Service) ListMemories(f storage.ListFilter) ([]*models.Memory, error) {
	return s.store.List(f)
}

// ---------------------------------------------------------------------------
// recall / get_project_brain / get_project_context / get_file_context
// ---------------------------------------------------------------------------

// Recall composes the project brain, cross-project preferences, and the
// global prompt file into one document, resolving project from workingDir.
func (s *Service) Recall(workingDir string) (*recall.Document, error) {
	return s.recaller.Build(workingDir)
}

// GetProjectBrain returns the bounded-token aggregation for one project.
func (s *Service) GetProjectBrain(project string) (*brain.Brain, error) {
	return s.brain.Build(project)
}

// GetProjectContext is recall with an explicit project override: project
// wins when non-empty, otherwise workingDir is auto-detected exactly as
// Recall does.
func (s *Service) GetProjectContext(project, workingDir string) (*recall.Document, error) {
	if project != "" {
		b, err := s.brain.Build(project)
		if err != nil {
			return nil, err
		}
		return &recall.Document{Project: project, Brain: b, GlobalPrompt: s.globalPromptOrEmpty()}, nil
	}
	return s.recaller.Build(workingDir)
}

// FileContext is the payload returned by get_file_context: the boost
// keywords derived from the file's name, and the memories those keywords
// surface via a keyword search scoped to the detected project.
type FileContext struct {
	FilePath string          `json:"file_path"`
	Keywords []string        `json:"keywords"`
	Project  string          `json:"project,omitempty"`
	Matches  []search.Result `json:"-"`
}

// GetFileContext derives boost keywords from filePath's name and searches
// for memories whose content mentions them, scoped to the project detected
// from workingDir (if any).
func (s *Service) GetFileContext(filePath, workingDir string) (*FileContext, error) {
	keywords := watcher.KeywordsForFilename(filePath)

	project := ""
	if workingDir != "" {
		if name, ok, err := s.store.DetectProject(workingDir); err == nil && ok {
			project = name
		}
	}

	fc := &FileContext{FilePath: filePath, Keywords: keywords, Project: project}
	if len(keywords) == 0 {
		return fc, nil
	}

	results, err := s.search.Search(search.Query{
		Text:       strings.Join(keywords, " "),
		K:          10,
		Project:    project,
		WorkingDir: workingDir,
	})
	if err != nil {
		return nil, err
	}
	fc.Matches = results
	return fc, nil
}

func (s *Service) globalPromptOrEmpty() string {
	data, err := os.ReadFile(config.GlobalPromptPath(s.Home))
	if err != nil {
		return ""
	}
	return string(data)
}

// ---------------------------------------------------------------------------
// register_project / list_projects
// ---------------------------------------------------------------------------

// RegisterProject upserts a project's working-directory path and description.
func (s *Service) RegisterProject(name, path, description string) error {
	return s.store.RegisterProject(name, path, description)
}

// ListProjects returns every registered project, ordered by name.
func (s *Service) ListProjects() ([]models.Project, error) {
	return s.store.ListProjects()
}

// ---------------------------------------------------------------------------
// get_stats / get_global_prompt
// ---------------------------------------------------------------------------

// GetStats computes corpus-wide counts.
func (s *Service) GetStats() (*storage.Stats, error) {
	return s.store.Stats()
}

// GetGlobalPrompt returns the contents of GLOBAL_PROMPT.md, or "" if absent.
func (s *Service) GetGlobalPrompt() (string, error) {
	data, err := os.ReadFile(config.GlobalPromptPath(s.Home))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", perr.Wrap(perr.Storage, err, "GetGlobalPrompt: read")
	}
	return string(data), nil
}

// ---------------------------------------------------------------------------
// export_memories
// ---------------------------------------------------------------------------

// ExportMemories lists memories matching filter and renders them in format
// ("json" or "markdown").
func (s *Service) ExportMemories(format string, filter storage.ListFilter) (string, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100000
	}
	memories, err := s.store.List(filter)
	if err != nil {
		return "", err
	}
	sort.Slice(memories, func(i, j int) bool { return memories[i].ID < memories[j].ID })

	switch strings.ToLower(format) {
	case "", "json":
		data, err := export.JSON(memories)
		if err != nil {
			return "", perr.Wrap(perr.Internal, err, "ExportMemories: marshal json")
		}
		return string(data), nil
	case "markdown", "md":
		return export.Markdown(memories), nil
	default:
		return "", perr.New(perr.InvalidArgument, "ExportMemories: unknown format %q", format)
	}
}

// ---------------------------------------------------------------------------
// set_config / get_config
// ---------------------------------------------------------------------------

// SetConfig upserts a key/value pair in the persisted config table.
func (s *Service) SetConfig(key, value string) error {
	return s.store.SetConfig(key, value)
}

// GetConfig returns the value for key, or ("", false, nil) if unset.
func (s *Service) GetConfig(key string) (string, bool, error) {
	return s.store.GetConfig(key)
}

// ---------------------------------------------------------------------------
// run_gc / cleanup_expired
// ---------------------------------------------------------------------------

// RunGC executes one garbage-collection pass, defaulting unset fields of cfg
// to this Service's persisted config.
func (s *Service) RunGC(cfg gc.Config) (*gc.Report, error) {
	if cfg.AgeDays <= 0 {
		cfg.AgeDays = s.Config.GC.AgeDays
	}
	if cfg.ImportanceThreshold <= 0 {
		cfg.ImportanceThreshold = s.Config.GC.ImportanceThreshold
	}
	return s.gc.Run(cfg)
}

// CleanupExpired deletes every expired memory outright.
func (s *Service) CleanupExpired() (int, error) {
	return s.store.CleanupExpired()
}

// ---------------------------------------------------------------------------
// migrate_v1 / backfill
// ---------------------------------------------------------------------------

// MigrateV1 imports a V1 JSON export from path.
func (s *Service) MigrateV1(path string) (*migrate.Report, error) {
	return migrate.Run(s.store, path)
}

// BackfillEmbeddings computes embeddings for every memory missing one.
func (s *Service) BackfillEmbeddings() (int, error) {
	return s.store.BackfillEmbeddings()
}

// DBPath returns the path to this Service's SQLite database, for diagnostics.
func (s *Service) DBPath() string {
	return filepath.Join(s.Home, "memory.db")
}
