package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/memorypilot/internal/config"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	c := qt.New(t)
	cfg, err := config.Load(filepath.Join(c.Mkdir(), "does-not-exist.yaml"))
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.GC.AgeDays, qt.Equals, 30)
	c.Assert(cfg.Watcher.RingCapacity, qt.Equals, 20)
}

func TestLoad_AppliesOnlyPresentKeys(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte("gc:\n  age_days: 14\n"), 0o644)
	c.Assert(err, qt.IsNil)

	cfg, err := config.Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.GC.AgeDays, qt.Equals, 14)
	c.Assert(cfg.GC.ImportanceThreshold, qt.Equals, 3)
	c.Assert(cfg.Watcher.RingCapacity, qt.Equals, 20)
}

func TestResolveHome_EnvOverridesDefault(t *testing.T) {
	c := qt.New(t)
	dir := c.Mkdir()
	c.Setenv("MEMORY_PILOT_HOME", dir)

	path, source := config.ResolveHome()
	c.Assert(source, qt.Equals, "env")
	c.Assert(path, qt.Equals, dir)
}
