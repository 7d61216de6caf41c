// Package brain implements the project-brain aggregator: a deterministic,
// bounded-token JSON snapshot of one project's memories.
package brain

import (
	"sort"
	"time"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/storage"
)

const (
	maxTechStack         = 30
	maxCoreArchitecture  = 10
	maxActiveBugs        = 5
	maxRecentChanges     = 10
	maxPreferences       = 10
	maxKeyComponents     = 15
	contentTruncateChars = 200
	recentChangeWindow   = 7 * 24 * time.Hour
)

// Brain is the bounded-token aggregation of a project's memories.
type Brain struct {
	Project                string    `json:"project"`
	TechStack               []string  `json:"tech_stack"`
	CoreArchitecture        []Excerpt `json:"core_architecture"`
	ActiveBugs              []Excerpt `json:"active_bugs"`
	RecentChanges           []Excerpt `json:"recent_changes"`
	PreferencesAndPatterns  []Excerpt `json:"preferences_and_patterns"`
	KeyComponents           []string  `json:"key_components"`
}

// Excerpt is a truncated, caller-facing rendering of one memory.
type Excerpt struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Importance int    `json:"importance"`
	Kind       string `json:"kind"`
}

// Aggregator builds project brains from a storage core.
type Aggregator struct {
	store *storage.Store
	now   func() time.Time
}

// New constructs an Aggregator.
func New(store *storage.Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// Build computes the brain for project. An empty project string resolves
// over the global (null-project) memory slice.
func (a *Aggregator) Build(project string) (*Brain, error) {
	scoped, err := a.store.List(storage.ListFilter{Project: project, Limit: 100000})
	if err != nil {
		return nil, err
	}

	var global []*models.Memory
	if project != "" {
		global, err = a.store.List(storage.ListFilter{Project: "", Limit: 100000})
		if err != nil {
			return nil, err
		}
	}

	b := &Brain{Project: project}
	b.TechStack = a.techStack(scoped)
	b.CoreArchitecture = a.coreArchitecture(scoped)
	b.ActiveBugs = a.activeBugs(scoped)
	b.RecentChanges = a.recentChanges(scoped)
	b.PreferencesAndPatterns = a.preferencesAndPatterns(scoped, global)
	b.KeyComponents = a.keyComponents(scoped)

	return b, nil
}

func (a *Aggregator) techStack(memories []*models.Memory) []string {
	set := make(map[string]bool)
	for _, m := range memories {
		ents, err := a.store.EntitiesForMemory(m.ID)
		if err != nil {
			continue
		}
		for _, e := range ents {
			if e.Kind == models.EntityTech {
				set[e.Value] = true
			}
		}
	}
	return capStrings(sortedKeys(set), maxTechStack)
}

func (a *Aggregator) coreArchitecture(memories []*models.Memory) []Excerpt {
	var filtered []*models.Memory
	for _, m := range memories {
		// No standalone "architecture" kind exists in the data model (see
		// DESIGN.md); decisions are the closest fit for this field.
		if m.Kind == models.KindDecision && m.Importance >= 3 {
			filtered = append(filtered, m)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Importance != filtered[j].Importance {
			return filtered[i].Importance > filtered[j].Importance
		}
		return filtered[i].UpdatedAt.After(filtered[j].UpdatedAt)
	})
	return toExcerpts(capMemories(filtered, maxCoreArchitecture))
}

func (a *Aggregator) activeBugs(memories []*models.Memory) []Excerpt {
	now := a.now()
	var bugs []*models.Memory
	for _, m := range memories {
		if m.Kind == models.KindBug && !m.IsExpired(now) {
			bugs = append(bugs, m)
		}
	}
	sort.Slice(bugs, func(i, j int) bool { return bugs[i].Importance > bugs[j].Importance })
	return toExcerpts(capMemories(bugs, maxActiveBugs))
}

func (a *Aggregator) recentChanges(memories []*models.Memory) []Excerpt {
	now := a.now()
	var recent []*models.Memory
	for _, m := range memories {
		if now.Sub(m.UpdatedAt) <= recentChangeWindow {
			recent = append(recent, m)
		}
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].UpdatedAt.After(recent[j].UpdatedAt) })
	return toExcerpts(capMemories(recent, maxRecentChanges))
}

func (a *Aggregator) preferencesAndPatterns(scoped, global []*models.Memory) []Excerpt {
	var out []*models.Memory
	for _, m := range append(append([]*models.Memory{}, scoped...), global...) {
		if (m.Kind == models.KindPreference || m.Kind == models.KindPattern) && m.Importance >= 3 {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return toExcerpts(capMemories(out, maxPreferences))
}

func (a *Aggregator) keyComponents(memories []*models.Memory) []string {
	set := make(map[string]bool)
	for _, m := range memories {
		ents, err := a.store.EntitiesForMemory(m.ID)
		if err != nil {
			continue
		}
		for _, e := range ents {
			if e.Kind == models.EntityComponent || e.Kind == models.EntityFile {
				set[e.Value] = true
			}
		}
	}
	return capStrings(sortedKeys(set), maxKeyComponents)
}

func capMemories(ms []*models.Memory, max int) []*models.Memory {
	if len(ms) > max {
		return ms[:max]
	}
	return ms
}

func capStrings(ss []string, max int) []string {
	if len(ss) > max {
		return ss[:max]
	}
	return ss
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func toExcerpts(ms []*models.Memory) []Excerpt {
	out := make([]Excerpt, len(ms))
	for i, m := range ms {
		content := m.Content
		if len(content) > contentTruncateChars {
			content = content[:contentTruncateChars-1] + "…"
		}
		out[i] = Excerpt{ID: m.ID, Content: content, Importance: m.Importance, Kind: string(m.Kind)}
	}
	return out
}
