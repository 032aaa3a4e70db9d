package forest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
)

// Registry stores model artifacts as <dir>/<sport>/<version>.json.
type Registry struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Model
}

// NewRegistry returns a registry rooted at dir.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, cache: make(map[string]*Model)}
}

// Path returns the artifact path for a sport and version.
func (r *Registry) Path(sport models.Sport, version string) string {
	return filepath.Join(r.dir, string(sport), version+".json")
}

// Save writes m under its sport and version, replacing any previous artifact atomically.
func (r *Registry) Save(m *Model) error {
	if !m.Sport.Valid() || m.ModelVersion == "" {
		return fmt.Errorf("model needs a sport and version, got %q/%q", m.Sport, m.ModelVersion)
	}
	path := r.Path(m.Sport, m.ModelVersion)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to install model: %w", err)
	}

	r.mu.Lock()
	r.cache[path] = m
	r.mu.Unlock()
	return nil
}

// Load reads the artifact for a sport and version. A missing or unreadable artifact is a
// ModelUnavailableError.
func (r *Registry) Load(sport models.Sport, version string) (*Model, error) {
	path := r.Path(sport, version)

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.cache[path]; ok {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("artifact %s not found", path)
		}
		return nil, &models.ModelUnavailableError{Sport: sport, Version: version, Err: err}
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &models.ModelUnavailableError{Sport: sport, Version: version, Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	if len(m.Trees) == 0 {
		return nil, &models.ModelUnavailableError{Sport: sport, Version: version, Err: errors.New("artifact has no trees")}
	}
	r.cache[path] = &m
	return &m, nil
}
