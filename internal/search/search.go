// Package search implements MemoryPilot's hybrid lexical+vector retrieval:
// BM25 candidates fused with cosine-similarity candidates via Reciprocal
// Rank Fusion, then re-scored by a set of multiplicative boosts.
package search

import (
	"sort"
	"strings"
	"time"

	"github.com/go-ports/memorypilot/internal/embedding"
	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/storage"
)

const (
	maxLexicalCandidates = 50
	maxVectorFetch       = 200
	maxVectorCandidates  = 50
)

// KeywordSource supplies the file watcher's current boost-keyword set for a
// working directory, used to boost results touching recently-edited files.
type KeywordSource interface {
	BoostKeywords(workingDir string) map[string]bool
}

// Query is the input to Search.
type Query struct {
	Text           string
	K              int
	Project        string
	Kinds          []models.Kind
	WorkingDir     string
	IncludeExpired bool
}

// Result is one ranked hit.
type Result struct {
	Memory *models.Memory
	Score  float64
}

// Engine runs hybrid search over a storage core.
type Engine struct {
	store    *storage.Store
	keywords KeywordSource
	now      func() time.Time
}

// New constructs a search Engine. keywords may be nil if no file watcher is
// wired (the recent-file boost is then always a no-op).
func New(store *storage.Store, keywords KeywordSource) *Engine {
	return &Engine{store: store, keywords: keywords, now: time.Now}
}

// Search fetches lexical and vector candidates, fuses their rankings, applies
// boosts, and returns up to q.K ranked results. It also applies the
// read-access side effect (bumping access_count/last_accessed_at) for every
// memory it returns.
func (e *Engine) Search(q Query) ([]Result, error) {
	if q.K <= 0 {
		q.K = 10
	}
	if q.K > 100 {
		q.K = 100
	}

	if strings.TrimSpace(q.Text) == "" {
		return e.emptyQueryFallback(q)
	}

	lexHits, err := e.store.LexicalCandidates(q.Text, q.Project, q.Kinds, q.IncludeExpired, maxLexicalCandidates)
	if err != nil {
		return nil, err
	}
	lexRank := make(map[string]int, len(lexHits))
	for i, h := range lexHits {
		lexRank[h.ID] = i + 1
	}

	stats, err := e.store.DocStats()
	if err != nil {
		return nil, err
	}
	queryVec := embedding.Embed(q.Text, stats)

	candidateFilter := storage.CandidateFilter{
		Project: q.Project, Kinds: q.Kinds, IncludeExpired: q.IncludeExpired, Limit: maxVectorFetch,
	}
	vecCandidates, err := e.store.VectorCandidates(candidateFilter)
	if err != nil {
		return nil, err
	}

	type scored struct {
		mem *models.Memory
		sim float64
	}
	var simScored []scored
	byID := make(map[string]*models.Memory, len(vecCandidates))
	for _, m := range vecCandidates {
		byID[m.ID] = m
		if len(m.Embedding) == 0 {
			continue
		}
		simScored = append(simScored, scored{mem: m, sim: embedding.Cosine(queryVec, m.Embedding)})
	}
	sort.Slice(simScored, func(i, j int) bool { return simScored[i].sim > simScored[j].sim })
	if len(simScored) > maxVectorCandidates {
		simScored = simScored[:maxVectorCandidates]
	}

	vecRank := make(map[string]int, len(simScored))
	for i, s := range simScored {
		vecRank[s.mem.ID] = i + 1
	}

	// lexical hits that never appeared in the (project/kind-filtered)
	// vector candidate fetch still need their Memory fetched for scoring.
	for _, h := range lexHits {
		if _, ok := byID[h.ID]; ok {
			continue
		}
		mem, err := e.store.Get(h.ID)
		if err != nil {
			continue
		}
		byID[h.ID] = mem
	}

	union := make(map[string]bool, len(lexRank)+len(vecRank))
	for id := range lexRank {
		union[id] = true
	}
	for id := range vecRank {
		union[id] = true
	}

	now := e.now()
	var keywordSet map[string]bool
	if e.keywords != nil && q.WorkingDir != "" {
		keywordSet = e.keywords.BoostKeywords(q.WorkingDir)
	}

	var results []Result
	for id := range union {
		mem, ok := byID[id]
		if !ok {
			continue
		}

		rrf := embedding.RRF(embedding.DefaultRRFK, lexRank[id], vecRank[id])
		linkCount, err := e.store.LinkCountFor(id)
		if err != nil {
			return nil, err
		}
		score := applyBoosts(rrf, mem, linkCount, keywordSet, now)
		results = append(results, Result{Memory: mem, Score: score})
	}

	sortResults(results)
	if len(results) > q.K {
		results = results[:q.K]
	}

	e.touchAccess(results)
	return results, nil
}

// applyBoosts applies the importance, link-count, recent-file-keyword, and
// expiry multiplicative boosts to a fused rank score.
func applyBoosts(rrf float64, mem *models.Memory, linkCount int, keywords map[string]bool, now time.Time) float64 {
	score := rrf

	importanceFactor := 1 + 0.1*float64(mem.Importance-3)
	if importanceFactor < 0.7 {
		importanceFactor = 0.7
	}
	if importanceFactor > 1.3 {
		importanceFactor = 1.3
	}
	score *= importanceFactor

	lc := linkCount
	if lc > 10 {
		lc = 10
	}
	score *= 1 + 0.05*float64(lc)

	if len(keywords) > 0 {
		matches := 0
		lowerContent := strings.ToLower(mem.Content)
		for kw := range keywords {
			if strings.Contains(lowerContent, kw) {
				matches++
			}
		}
		if matches > 5 {
			matches = 5
		}
		score *= 1 + 0.2*float64(matches)
	}

	if mem.IsExpired(now) {
		score *= 0.25
	}

	return score
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Memory.UpdatedAt.Equal(results[j].Memory.UpdatedAt) {
			return results[i].Memory.UpdatedAt.After(results[j].Memory.UpdatedAt)
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
}

// emptyQueryFallback handles an empty query string: results are ordered by
// importance then recency, with no lexical or vector scoring involved.
func (e *Engine) emptyQueryFallback(q Query) ([]Result, error) {
	candidates, err := e.store.List(storage.ListFilter{
		Project: q.Project, Kinds: q.Kinds, IncludeExpired: q.IncludeExpired, Limit: maxVectorFetch,
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Importance != candidates[j].Importance {
			return candidates[i].Importance > candidates[j].Importance
		}
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})
	if len(candidates) > q.K {
		candidates = candidates[:q.K]
	}
	results := make([]Result, len(candidates))
	for i, m := range candidates {
		results[i] = Result{Memory: m, Score: 0}
	}
	e.touchAccess(results)
	return results, nil
}

// touchAccess bumps access_count/last_accessed_at for every returned result
// in a single batched transaction. Access-tracking failures are not fatal to
// the search response itself.
func (e *Engine) touchAccess(results []Result) {
	if len(results) == 0 {
		return
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Memory.ID
	}
	_ = e.store.TouchAccess(ids)
}
