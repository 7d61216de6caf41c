package watcher

import "sync"

// Registry lazily starts and reuses one Watcher per directory: the watcher
// for a directory starts the first time a search or recall call supplies a
// matching working_dir, subsequent calls reuse it, and there is no teardown
// API short of process exit.
type Registry struct {
	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewRegistry constructs an empty watcher registry.
func NewRegistry() *Registry {
	return &Registry{watchers: make(map[string]*Watcher)}
}

// BoostKeywords returns the boost-keyword set for dir, starting a watcher
// for it on first use. A directory that fails to start a watcher (e.g. it
// doesn't exist) yields an empty set rather than an error, since the boost
// is advisory.
func (r *Registry) BoostKeywords(dir string) map[string]bool {
	if dir == "" {
		return nil
	}
	w := r.watcherFor(dir)
	if w == nil {
		return nil
	}
	return w.BoostKeywords()
}

func (r *Registry) watcherFor(dir string) *Watcher {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w, ok := r.watchers[dir]; ok {
		return w
	}
	w, err := start(dir)
	if err != nil {
		// Record nothing: a transient failure should be retried on the
		// next call rather than permanently cached as absent.
		return nil
	}
	r.watchers[dir] = w
	return w
}

// CloseAll stops every running watcher. Used only by tests and by a clean
// process shutdown path; the MCP server itself relies on process exit.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.watchers {
		w.Close()
	}
	r.watchers = make(map[string]*Watcher)
}
