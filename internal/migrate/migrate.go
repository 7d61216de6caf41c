// Package migrate implements the V1-JSON importer: a flat JSON array of
// pre-FTS5 memory records, reusing the storage layer's dedup path so
// re-running a migration is idempotent.
package migrate

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
	"github.com/go-ports/memorypilot/internal/storage"
)

// v1Record is the flat shape a V1 export used, before the vault/markdown
// split: {id,content,kind,project,tags,importance,created_at}. The id is
// preserved on import so an export-then-migrate round trip reproduces the
// same set of memory ids.
type v1Record struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	Kind      string   `json:"kind"`
	Project   string   `json:"project"`
	Tags      []string `json:"tags"`
	Importance int     `json:"importance"`
	CreatedAt string   `json:"created_at"`
}

// Report summarizes one migration run.
type Report struct {
	Imported int
	Deduped  int
	Skipped  int
}

// Run parses the V1 JSON array at path and imports each record via
// storage.Add, reusing the dedup path.
func Run(store *storage.Store, path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "migrate.Run: read %s", path)
	}

	var records []v1Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, perr.Wrap(perr.InvalidArgument, err, "migrate.Run: parse v1 export")
	}

	report := &Report{}
	for _, rec := range records {
		kind := models.Kind(rec.Kind)
		if !models.IsValidKind(kind) || rec.Content == "" {
			report.Skipped++
			continue
		}

		var createdAt *time.Time
		if rec.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339, rec.CreatedAt); err == nil {
				createdAt = &t
			}
		}

		res, err := store.Add(storage.AddInput{
			ID:         rec.ID,
			Content:    rec.Content,
			Kind:       kind,
			Project:    rec.Project,
			Tags:       rec.Tags,
			Importance: rec.Importance,
			CreatedAt:  createdAt,
		})
		if err != nil {
			report.Skipped++
			continue
		}
		if res.WasDeduped {
			report.Deduped++
		} else {
			report.Imported++
		}
	}

	return report, nil
}
