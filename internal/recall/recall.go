// Package recall implements the recall(working_dir?) operation: a
// one-shot session context bundle composing the project brain,
// cross-project preferences, and the contents of GLOBAL_PROMPT.md.
package recall

import (
	"os"
	"path/filepath"

	"github.com/go-ports/memorypilot/internal/brain"
	"github.com/go-ports/memorypilot/internal/storage"
)

// Document is the composed recall payload.
type Document struct {
	Project      string       `json:"project,omitempty"`
	Brain        *brain.Brain `json:"brain"`
	GlobalPrompt string       `json:"global_prompt,omitempty"`
}

// Recaller composes recall documents from a storage core and an aggregator.
type Recaller struct {
	store   *storage.Store
	agg     *brain.Aggregator
	homeDir string
}

// New constructs a Recaller. homeDir is MemoryPilot's data directory
// (typically ~/.memory-pilot), where GLOBAL_PROMPT.md is looked up.
func New(store *storage.Store, agg *brain.Aggregator, homeDir string) *Recaller {
	return &Recaller{store: store, agg: agg, homeDir: homeDir}
}

// Build resolves project from workingDir via the store's auto-detection
// rule when the caller has no explicit project, then composes the brain and
// global prompt into one Document.
func (r *Recaller) Build(workingDir string) (*Document, error) {
	project := ""
	if workingDir != "" {
		if name, ok, err := r.store.DetectProject(workingDir); err != nil {
			return nil, err
		} else if ok {
			project = name
		}
	}

	b, err := r.agg.Build(project)
	if err != nil {
		return nil, err
	}

	return &Document{
		Project:      project,
		Brain:        b,
		GlobalPrompt: r.globalPrompt(),
	}, nil
}

// globalPrompt reads GLOBAL_PROMPT.md from the home directory, returning ""
// if it doesn't exist or can't be read — it's an optional file.
func (r *Recaller) globalPrompt() string {
	if r.homeDir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(r.homeDir, "GLOBAL_PROMPT.md"))
	if err != nil {
		return ""
	}
	return string(data)
}
