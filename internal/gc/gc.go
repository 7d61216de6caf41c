// Package gc implements MemoryPilot's garbage collector: staleness scoring,
// cluster-merging of low-value memories, orphan entity/link cleanup, and
// vacuum-based compaction.
package gc

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/storage"
)

// Config holds a GC run's tunable inputs.
type Config struct {
	AgeDays             int
	ImportanceThreshold int
	DryRun              bool
}

// DefaultConfig returns the documented defaults: 30 days, importance
// threshold 3.
func DefaultConfig() Config {
	return Config{AgeDays: 30, ImportanceThreshold: 3}
}

// clusterableKinds is the kind set eligible for staleness-based cleanup.
var clusterableKinds = map[models.Kind]bool{
	models.KindNote:    true,
	models.KindSnippet: true,
	models.KindBug:     true,
	models.KindTodo:    true,
}

// Report summarizes the outcome of one GC run.
type Report struct {
	ExpiredRemoved int
	Candidates     int
	// MergedInto is the number of new summary memories created by clustering
	// (one per qualifying (project, kind) group), not the number of members
	// folded into them.
	MergedInto      int
	EntitiesCleaned int
	LinksCleaned    int
	Vacuumed        bool
	DryRun          bool
}

// Collector runs garbage collection over a storage core.
type Collector struct {
	store *storage.Store
	now   func() time.Time
}

// New constructs a Collector.
func New(store *storage.Store) *Collector {
	return &Collector{store: store, now: time.Now}
}

type scoredMemory struct {
	mem   *models.Memory
	score float64
}

// Run executes one GC pass. With cfg.DryRun, all calculations happen but no
// mutation is committed; the returned report still reflects what would have
// happened.
func (c *Collector) Run(cfg Config) (*Report, error) {
	if cfg.AgeDays <= 0 {
		cfg.AgeDays = 30
	}
	if cfg.ImportanceThreshold <= 0 {
		cfg.ImportanceThreshold = 3
	}

	report := &Report{DryRun: cfg.DryRun}
	now := c.now()

	if !cfg.DryRun {
		expired, err := c.store.CleanupExpired()
		if err != nil {
			return nil, err
		}
		report.ExpiredRemoved = expired
	} else {
		expired, err := c.countExpired()
		if err != nil {
			return nil, err
		}
		report.ExpiredRemoved = expired
	}

	all, err := c.store.AllMemories()
	if err != nil {
		return nil, err
	}

	var candidates []scoredMemory
	for _, m := range all {
		if m.IsExpired(now) {
			continue
		}
		if !clusterableKinds[m.Kind] || m.Importance > cfg.ImportanceThreshold {
			continue
		}
		score := staleness(m, now, cfg.AgeDays)
		if score > 0.6 {
			candidates = append(candidates, scoredMemory{mem: m, score: score})
		}
	}
	report.Candidates = len(candidates)

	groups := make(map[string][]scoredMemory)
	for _, sm := range candidates {
		key := string(sm.mem.Project) + "\x00" + string(sm.mem.Kind)
		groups[key] = append(groups[key], sm)
	}

	mergedGroups := 0
	mergedMembers := 0
	for _, group := range groups {
		if len(group) < 3 {
			continue
		}
		if !cfg.DryRun {
			if err := c.mergeGroup(group, now); err != nil {
				return nil, err
			}
		}
		mergedGroups++
		mergedMembers += len(group)
	}
	report.MergedInto = mergedGroups

	if !cfg.DryRun {
		entitiesCleaned, linksCleaned, err := c.store.OrphanCleanup()
		if err != nil {
			return nil, err
		}
		report.EntitiesCleaned = entitiesCleaned
		report.LinksCleaned = linksCleaned

		deletedRows := report.ExpiredRemoved + mergedMembers
		reclaimable, err := c.reclaimableBytesEstimate()
		if err != nil {
			return nil, err
		}
		if deletedRows >= 50 || reclaimable >= 1<<20 {
			if err := c.store.Vacuum(); err != nil {
				return nil, err
			}
			report.Vacuumed = true
		}
	}

	return report, nil
}

// staleness computes the weighted score: 40% age, 30% inverse importance,
// 20% inverse recency of last access, 10% inverse access count.
func staleness(m *models.Memory, now time.Time, configuredAgeDays int) float64 {
	ageDays := now.Sub(m.CreatedAt).Hours() / 24
	ageFactor := clamp(ageDays/float64(configuredAgeDays), 0, 1)

	inverseImportance := float64(6-m.Importance) / 5

	lastAccess := m.UpdatedAt
	if m.LastAccessedAt != nil {
		lastAccess = *m.LastAccessedAt
	}
	recencyDays := now.Sub(lastAccess).Hours() / 24
	inverseRecency := clamp(recencyDays/float64(configuredAgeDays), 0, 1)

	inverseAccessCount := 1 / (1 + float64(m.AccessCount))

	return 0.4*ageFactor + 0.3*inverseImportance + 0.2*inverseRecency + 0.1*inverseAccessCount
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mergeGroup replaces one (project, kind) cluster with a single summary
// memory.
func (c *Collector) mergeGroup(group []scoredMemory, now time.Time) error {
	sort.Slice(group, func(i, j int) bool { return group[i].mem.CreatedAt.Before(group[j].mem.CreatedAt) })

	var ids []string
	maxImportance := 0
	minCreated := group[0].mem.CreatedAt
	tagSet := map[string]bool{"merged": true}

	var body string
	body = fmt.Sprintf("Merged %d memories on %s\n", len(group), now.Format("2006-01-02"))
	for _, sm := range group {
		ids = append(ids, sm.mem.ID)
		if sm.mem.Importance > maxImportance {
			maxImportance = sm.mem.Importance
		}
		if sm.mem.CreatedAt.Before(minCreated) {
			minCreated = sm.mem.CreatedAt
		}
		for _, t := range sm.mem.Tags {
			tagSet[t] = true
		}
		excerpt := sm.mem.Content
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		body += "- " + excerpt + "\n"
	}

	var tags []string
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	project := group[0].mem.Project
	kind := group[0].mem.Kind

	_, err := c.store.ReplaceWithMerge(ids, kind, project, body, maxImportance, minCreated, now, tags)
	return err
}

// countExpired reports how many memories would be removed by
// CleanupExpired, without removing them, for dry-run reporting.
func (c *Collector) countExpired() (int, error) {
	all, err := c.store.AllMemories()
	if err != nil {
		return 0, err
	}
	now := c.now()
	n := 0
	for _, m := range all {
		if m.IsExpired(now) {
			n++
		}
	}
	return n, nil
}

// reclaimableBytesEstimate approximates reclaimable bytes from SQLite's
// freelist page count, used for the vacuum-threshold decision.
func (c *Collector) reclaimableBytesEstimate() (int64, error) {
	_, freelistCount, pageSize, err := c.store.PageStats()
	if err != nil {
		return 0, err
	}
	return freelistCount * pageSize, nil
}
