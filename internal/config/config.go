// Package config handles home-directory resolution and the per-install
// YAML config, adapted from go-ports/echovault's internal/config package.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GCConfig mirrors the inputs to a garbage collection run.
type GCConfig struct {
	AgeDays             int  `yaml:"age_days"`
	ImportanceThreshold int  `yaml:"importance_threshold"`
	DryRun              bool `yaml:"dry_run"`
}

// WatcherConfig tunes the file watcher.
type WatcherConfig struct {
	DebounceMillis int `yaml:"debounce_millis"`
	RingCapacity   int `yaml:"ring_capacity"`
}

// Config is the root MemoryPilot configuration.
type Config struct {
	GC      GCConfig      `yaml:"gc"`
	Watcher WatcherConfig `yaml:"watcher"`
}

// Default returns a Config populated with the documented defaults.
func Default() *Config {
	return &Config{
		GC: GCConfig{
			AgeDays:             30,
			ImportanceThreshold: 3,
		},
		Watcher: WatcherConfig{
			DebounceMillis: 500,
			RingCapacity:   20,
		},
	}
}

// Load reads config.yaml from path. If the file does not exist it returns
// Default() with no error. Missing keys retain their default values, the
// same apply-only-present-keys pattern go-ports/echovault's config loader
// uses.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if gc, ok := raw["gc"].(map[string]any); ok {
		if v, ok := gc["age_days"].(int); ok && v > 0 {
			cfg.GC.AgeDays = v
		}
		if v, ok := gc["importance_threshold"].(int); ok && v > 0 {
			cfg.GC.ImportanceThreshold = v
		}
		if v, ok := gc["dry_run"].(bool); ok {
			cfg.GC.DryRun = v
		}
	}

	if w, ok := raw["watcher"].(map[string]any); ok {
		if v, ok := w["debounce_millis"].(int); ok && v > 0 {
			cfg.Watcher.DebounceMillis = v
		}
		if v, ok := w["ring_capacity"].(int); ok && v > 0 {
			cfg.Watcher.RingCapacity = v
		}
	}

	return cfg, nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveHome returns MemoryPilot's data directory and the source of the
// resolution. Priority: MEMORY_PILOT_HOME env → ~/.memory-pilot default.
// source is one of "env" or "default".
func ResolveHome() (path, source string) {
	if env := os.Getenv("MEMORY_PILOT_HOME"); env != "" {
		if p, err := normalizePath(env); err == nil {
			return p, "env"
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".memory-pilot"), "default"
}

// GetHome returns the resolved home directory.
func GetHome() string {
	path, _ := ResolveHome()
	return path
}

// DBPath returns the path to the SQLite database under home.
func DBPath(home string) string {
	return filepath.Join(home, "memory.db")
}

// ConfigPath returns the path to config.yaml under home.
func ConfigPath(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GlobalPromptPath returns the path to GLOBAL_PROMPT.md under home.
func GlobalPromptPath(home string) string {
	return filepath.Join(home, "GLOBAL_PROMPT.md")
}

// EnsureHome creates the home directory if it does not already exist.
func EnsureHome(home string) error {
	return os.MkdirAll(home, 0o755)
}
