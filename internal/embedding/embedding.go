// Package embedding implements a deterministic hash-based TF–IDF surrogate
// for a real embedding model: no model files, no network calls, same input
// always produces the same 384-dimensional unit vector. It also hosts the
// cosine similarity and Reciprocal Rank Fusion primitives the search engine
// builds on.
package embedding

import (
	"hash/fnv"
	"math"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/tokenize"
)

// DocStats is the read-only view of the corpus-level document-frequency
// table the storage layer maintains transactionally on insert/delete. The
// embedding engine consults it only while computing a vector; it never
// mutates it.
type DocStats interface {
	// DocFreq returns the number of memories whose content contains token at
	// least once.
	DocFreq(token string) int
	// TotalDocs returns the total number of memories contributing to the
	// document-frequency table.
	TotalDocs() int
}

// ZeroStats is a DocStats with an empty corpus, useful for embedding text
// before any memory has been indexed (idf collapses to a constant).
type ZeroStats struct{}

func (ZeroStats) DocFreq(string) int { return 0 }
func (ZeroStats) TotalDocs() int     { return 0 }

// Embed computes a deterministic 384-d unit vector for text against the
// given document-frequency table.
func Embed(text string, stats DocStats) []float32 {
	if stats == nil {
		stats = ZeroStats{}
	}

	tf := make(map[int]int, 16)
	tokenCounts := make(map[string]int, 16)
	for _, tok := range tokenize.Words(text, 2) {
		dim := dimFor(tok)
		tf[dim]++
		tokenCounts[tok]++
	}

	vec := make([]float32, models.EmbeddingDims)
	if len(tokenCounts) == 0 {
		return vec
	}

	total := float64(stats.TotalDocs())
	for tok, count := range tokenCounts {
		dim := dimFor(tok)
		damped := 1 + math.Log(float64(count))
		idf := math.Log((total+1)/(float64(stats.DocFreq(tok))+1)) + 1
		vec[dim] += float32(damped * idf)
	}

	normalize(vec)
	return vec
}

// dimFor folds a token's stable 64-bit hash into [0, EmbeddingDims).
func dimFor(token string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum64() % uint64(models.EmbeddingDims))
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

// Cosine computes the cosine similarity of a and b, in [-1, 1]. Vectors of
// mismatched length or either empty return 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// DefaultRRFK is the default RRF smoothing constant.
const DefaultRRFK = 60

// RRF computes Reciprocal Rank Fusion Σ 1/(k + rank_i) for a candidate over
// the ranks at which it appeared across heterogeneous ranked lists. A rank
// of 0 means "absent from that list" and contributes nothing.
func RRF(k int, ranks ...int) float64 {
	if k <= 0 {
		k = DefaultRRFK
	}
	var sum float64
	for _, r := range ranks {
		if r <= 0 {
			continue
		}
		sum += 1.0 / float64(k+r)
	}
	return sum
}

// Marshal encodes a vector as a fixed-layout binary blob: four bytes per
// dimension, little-endian IEEE-754. A nil or empty vector marshals to a
// nil blob.
func Marshal(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, f := range vec {
		bits := math.Float32bits(f)
		b[i*4+0] = byte(bits)
		b[i*4+1] = byte(bits >> 8)
		b[i*4+2] = byte(bits >> 16)
		b[i*4+3] = byte(bits >> 24)
	}
	return b
}

// Unmarshal decodes a binary blob produced by Marshal back into a vector.
// An empty blob decodes to nil. Returns an error-free nil for malformed
// blobs whose length is not a multiple of 4; callers that must distinguish
// corruption from "no embedding" should check blob length themselves
// against models.EmbeddingDims*4.
func Unmarshal(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		off := i * 4
		bits := uint32(blob[off]) | uint32(blob[off+1])<<8 | uint32(blob[off+2])<<16 | uint32(blob[off+3])<<24
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}
