// Package tokenize provides the shared text-normalization primitives used by
// the embedding engine, the entity extractor, the garbage collector, and
// dedup comparison: lowercasing, non-alphanumeric splitting, and a fixed
// English stopword set.
package tokenize

import (
	"regexp"
	"strings"
)

// Stopwords is the fixed English stopword set dropped during tokenization.
var Stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "to": true, "of": true, "in": true, "on": true, "at": true,
	"for": true, "with": true, "by": true, "from": true, "up": true, "down": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"as": true, "if": true, "than": true, "so": true, "not": true, "no": true,
	"do": true, "does": true, "did": true, "has": true, "have": true, "had": true,
	"i": true, "you": true, "he": true, "she": true, "we": true, "they": true,
	"my": true, "your": true, "his": true, "her": true, "its": true, "our": true,
	"their": true, "will": true, "would": true, "can": true, "could": true,
	"should": true, "may": true, "might": true, "must": true, "into": true,
	"about": true, "over": true, "after": true, "before": true, "then": true,
	"just": true, "also": true, "very": true, "there": true, "here": true,
	"when": true, "where": true, "which": true, "who": true, "whom": true,
	"what": true, "how": true, "all": true, "any": true, "each": true,
	"few": true, "more": true, "most": true, "other": true, "some": true,
	"such": true, "only": true, "own": true, "same": true, "too": true,
}

var splitRe = regexp.MustCompile(`[^a-z0-9]+`)

// Words lowercases s, splits on runs of non-alphanumeric characters, drops
// tokens shorter than minLen, and drops stopwords.
func Words(s string, minLen int) []string {
	lower := strings.ToLower(s)
	raw := splitRe.Split(lower, -1)
	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len(tok) < minLen {
			continue
		}
		if Stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Set builds a deduplicated token set from s using the same rules as Words.
func Set(s string, minLen int) map[string]bool {
	words := Words(s, minLen)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Jaccard computes |A ∩ B| / |A ∪ B| over two token sets derived from a and b
// via Set(_, 2) — whitespace+punctuation tokens, lowercased, stopwords
// removed, compared as sets. This is the tokenization near-duplicate
// detection uses.
func Jaccard(a, b string) float64 {
	setA := Set(a, 2)
	setB := Set(b, 2)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
