package storage

import (
	"database/sql"

	"github.com/go-ports/memorypilot/internal/perr"
	"github.com/go-ports/memorypilot/internal/tokenize"
)

// bumpDocFreq increments df for each distinct token in content. Must be
// called within the same transaction as the memory insert it accompanies.
func bumpDocFreq(tx *sql.Tx, content string) error {
	seen := tokenize.Set(content, 2)
	for tok := range seen {
		if _, err := tx.Exec(`INSERT INTO term_doc_freq (term, df) VALUES (?, 1)
			ON CONFLICT(term) DO UPDATE SET df = df + 1`, tok); err != nil {
			return perr.Wrap(perr.Storage, err, "bumpDocFreq")
		}
	}
	return nil
}

// unbumpDocFreq decrements df for each distinct token in content, removing
// the row once it reaches zero. Must be called within the same transaction
// as the memory delete it accompanies.
func unbumpDocFreq(tx *sql.Tx, content string) error {
	seen := tokenize.Set(content, 2)
	for tok := range seen {
		if _, err := tx.Exec(`UPDATE term_doc_freq SET df = df - 1 WHERE term = ?`, tok); err != nil {
			return perr.Wrap(perr.Storage, err, "unbumpDocFreq")
		}
		if _, err := tx.Exec(`DELETE FROM term_doc_freq WHERE term = ? AND df <= 0`, tok); err != nil {
			return perr.Wrap(perr.Storage, err, "unbumpDocFreq: cleanup")
		}
	}
	return nil
}

// docStatsSnapshot is a read-only, in-memory view of term_doc_freq loaded
// once per search call, satisfying embedding.DocStats. Loading it as a
// snapshot (rather than querying per token) keeps it stable for the
// duration of a single search.
type docStatsSnapshot struct {
	df    map[string]int
	total int
}

func (d *docStatsSnapshot) DocFreq(token string) int { return d.df[token] }
func (d *docStatsSnapshot) TotalDocs() int           { return d.total }

// DocStats returns a snapshot of the corpus-level document-frequency table
// for use by the embedding engine during a single search or embed call.
func (s *Store) DocStats() (*docStatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &docStatsSnapshot{df: make(map[string]int)}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM memories`).Scan(&snap.total); err != nil {
		return nil, perr.Wrap(perr.Storage, err, "DocStats: count")
	}

	rows, err := s.db.Query(`SELECT term, df FROM term_doc_freq`)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "DocStats: query")
	}
	defer rows.Close()
	for rows.Next() {
		var term string
		var df int
		if err := rows.Scan(&term, &df); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "DocStats: scan")
		}
		snap.df[term] = df
	}
	return snap, rows.Err()
}
