package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestSplitStem_CamelCaseAndSeparators(t *testing.T) {
	c := qt.New(t)
	cases := []struct {
		in   string
		want []string
	}{
		{"userService", []string{"user", "Service"}},
		{"user-service", []string{"user", "service"}},
		{"user_service_impl", []string{"user", "service", "impl"}},
		{"HTTPClient", []string{"HTTPClient"}},
	}
	for _, tc := range cases {
		c.Assert(splitStem(tc.in), qt.DeepEquals, tc.want)
	}
}

func TestShouldIgnorePath(t *testing.T) {
	c := qt.New(t)
	c.Assert(shouldIgnorePath("/root/proj/.git/HEAD", "/root/proj"), qt.IsTrue)
	c.Assert(shouldIgnorePath("/root/proj/node_modules/pkg/index.js", "/root/proj"), qt.IsTrue)
	c.Assert(shouldIgnorePath("/root/proj/target/debug/bin", "/root/proj"), qt.IsTrue)
	c.Assert(shouldIgnorePath("/root/proj/src/main.go", "/root/proj"), qt.IsFalse)
}

func TestWatcher_RingBufferCapsAtTwenty(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()

	w, err := start(dir)
	c.Assert(err, qt.IsNil)
	c.Cleanup(w.Close)

	for i := 0; i < 25; i++ {
		// Each distinct path avoids the debounce window collapsing writes.
		name := filepath.Join(dir, "file"+string(rune('a'+i))+".go")
		c.Assert(os.WriteFile(name, []byte("package p"), 0o644), qt.IsNil)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		n := len(w.ring)
		w.mu.Unlock()
		if n >= ringCapacity {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	w.mu.Lock()
	n := len(w.ring)
	w.mu.Unlock()
	c.Assert(n <= ringCapacity, qt.IsTrue)
}

func TestRegistry_ReusesWatcherForSameDir(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()

	r := NewRegistry()
	c.Cleanup(r.CloseAll)

	first := r.watcherFor(dir)
	c.Assert(first, qt.Not(qt.IsNil))
	second := r.watcherFor(dir)
	c.Assert(second, qt.Equals, first)
}
