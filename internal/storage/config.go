package storage

import (
	"database/sql"
	"errors"

	"github.com/go-ports/memorypilot/internal/models"
	"github.com/go-ports/memorypilot/internal/perr"
)

// GetConfig returns the value for key, or ("", false, nil) if not set.
func (s *Store) GetConfig(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var val string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, perr.Wrap(perr.Storage, err, "GetConfig")
	}
	return val, true, nil
}

// SetConfig upserts a key/value pair in the config table.
func (s *Store) SetConfig(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return perr.Wrap(perr.Storage, err, "SetConfig")
	}
	return nil
}

// RegisterProject upserts a project's path/description by name.
func (s *Store) RegisterProject(name, path, description string) error {
	if name == "" {
		return perr.New(perr.InvalidArgument, "RegisterProject: name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO projects (name, path, description) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET path = excluded.path, description = excluded.description`,
		name, path, description)
	if err != nil {
		return perr.Wrap(perr.Storage, err, "RegisterProject")
	}
	return nil
}

// ListProjects returns every registered project, ordered by name.
func (s *Store) ListProjects() ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT name, path, description FROM projects ORDER BY name`)
	if err != nil {
		return nil, perr.Wrap(perr.Storage, err, "ListProjects")
	}
	defer rows.Close()

	var out []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.Name, &p.Path, &p.Description); err != nil {
			return nil, perr.Wrap(perr.Storage, err, "ListProjects: scan")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DetectProject resolves the longest registered path that is a prefix of
// workingDir. Returns ("", false) if no project's path prefixes workingDir.
func (s *Store) DetectProject(workingDir string) (string, bool, error) {
	if workingDir == "" {
		return "", false, nil
	}
	projects, err := s.ListProjects()
	if err != nil {
		return "", false, err
	}
	best := ""
	bestLen := -1
	for _, p := range projects {
		if p.Path == "" {
			continue
		}
		if hasPathPrefix(workingDir, p.Path) && len(p.Path) > bestLen {
			best = p.Name
			bestLen = len(p.Path)
		}
	}
	return best, bestLen >= 0, nil
}

// hasPathPrefix reports whether dir is p.Path itself or lives under it.
func hasPathPrefix(dir, prefix string) bool {
	if dir == prefix {
		return true
	}
	if len(dir) > len(prefix) && dir[:len(prefix)] == prefix {
		// Require a path separator boundary, not an arbitrary string prefix.
		sep := dir[len(prefix)]
		return sep == '/' || (len(prefix) > 0 && prefix[len(prefix)-1] == '/')
	}
	return false
}
