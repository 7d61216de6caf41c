// Package watcher implements the per-directory file watcher that derives
// search boost keywords from recently touched files, grounded on
// josephgoksu-TaskWing's fsnotify-based watch agent
// (internal/agents/watch.WatchAgent): a recursive
// fsnotify.Watcher feeding a single event loop, a debouncer collapsing rapid
// duplicate events, and a ring buffer of recent file touches used to derive
// search boost keywords.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ringCapacity is the fixed ring buffer size of recent file touches kept
// per watched directory.
const ringCapacity = 20

// debounceWindow collapses duplicate events on the same path.
const debounceWindow = 500 * time.Millisecond

var ignoredDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
}

// entry is one ring buffer slot.
type entry struct {
	path      string
	filename  string
	timestamp time.Time
}

// Watcher monitors one directory tree and maintains a bounded ring buffer
// of recently touched files, from which search boost keywords are derived.
type Watcher struct {
	root string

	mu        sync.Mutex
	ring      []entry
	lastEvent map[string]time.Time

	fsw    *fsnotify.Watcher
	done   chan struct{}
	closed bool
}

// start creates and launches a Watcher rooted at dir. Errors adding watches
// to individual subdirectories are tolerated (best-effort, matching
// josephgoksu-TaskWing's addWatchRecursive).
func start(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:      dir,
		lastEvent: make(map[string]time.Time),
		fsw:       fsw,
		done:      make(chan struct{}),
	}

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || !d.IsDir() {
			return nil
		}
		if path != dir && shouldIgnorePath(path, dir) {
			return filepath.SkipDir
		}
		_ = fsw.Add(path)
		return nil
	})

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if shouldIgnorePath(ev.Name, w.root) {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(ev.Name)
			return
		}
	}

	// Creation, modification, deletion and rename all update the buffer
	// (rename surfaces as an insert of the new path).
	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 && ev.Op&fsnotify.Remove == 0:
		return
	}

	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if last, ok := w.lastEvent[ev.Name]; ok && now.Sub(last) < debounceWindow {
		return
	}
	w.lastEvent[ev.Name] = now

	w.ring = append(w.ring, entry{
		path:      ev.Name,
		filename:  filepath.Base(ev.Name),
		timestamp: now,
	})
	if len(w.ring) > ringCapacity {
		w.ring = w.ring[len(w.ring)-ringCapacity:]
	}
}

// shouldIgnorePath reports whether path contains a hidden segment
// (dot-prefixed) or a node_modules/target segment, relative to root.
func shouldIgnorePath(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	for _, seg := range strings.Split(rel, string(os.PathSeparator)) {
		if seg == "" || seg == "." {
			continue
		}
		if strings.HasPrefix(seg, ".") || ignoredDirs[seg] {
			return true
		}
	}
	return false
}

// BoostKeywords derives the unordered keyword set from every ring entry's
// filename stem: split on CamelCase/`-`/`_` boundaries, lowercase, drop
// tokens shorter than 3 runes, dedupe across the ring.
func (w *Watcher) BoostKeywords() map[string]bool {
	w.mu.Lock()
	ring := make([]entry, len(w.ring))
	copy(ring, w.ring)
	w.mu.Unlock()

	out := make(map[string]bool)
	for _, e := range ring {
		stem := e.filename
		if i := strings.IndexByte(stem, '.'); i >= 0 {
			stem = stem[:i]
		}
		for _, tok := range splitStem(stem) {
			lower := strings.ToLower(tok)
			if len(lower) < 3 {
				continue
			}
			out[lower] = true
		}
	}
	return out
}

// KeywordsForFilename derives the same boost-keyword set BoostKeywords
// computes per ring entry, for a single filename supplied directly (used by
// get_file_context, which has no ring to consult).
func KeywordsForFilename(filename string) []string {
	stem := filepath.Base(filename)
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	seen := make(map[string]bool)
	var out []string
	for _, tok := range splitStem(stem) {
		lower := strings.ToLower(tok)
		if len(lower) < 3 || seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	return out
}

// splitStem splits on CamelCase boundaries and on `-`/`_`.
func splitStem(stem string) []string {
	var parts []string
	var cur strings.Builder
	runes := []rune(stem)
	for i, r := range runes {
		if r == '-' || r == '_' {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
			continue
		}
		if i > 0 && isUpper(r) && !isUpper(runes[i-1]) {
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

// Close stops the watcher's event loop and releases its fsnotify handle.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	_ = w.fsw.Close()
}
