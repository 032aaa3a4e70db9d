package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Fletcher15478/nba-game-predictor/internal/models"
	"github.com/google/uuid"
)

const (
	currentFile   = "CURRENT"
	genPrefix     = "gen-"
	keepPrevious  = 2
	docFileSuffix = ".json"
)

// FileStore keeps each commit in its own generation directory under <dir>/<sport>/ and
// publishes it by atomically replacing the CURRENT pointer file.
type FileStore struct {
	dir string

	writeFile func(path string, data []byte) error
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "gameoracle", "data")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dir: dir, writeFile: writeFileSync}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) sportDir(sport models.Sport) string {
	return filepath.Join(s.dir, string(sport))
}

func (s *FileStore) Load(ctx context.Context, sport models.Sport) (*models.Documents, error) {
	docs := models.NewDocuments(sport)
	gen, err := s.current(sport)
	if err != nil {
		return nil, err
	}
	if gen == "" {
		return docs, nil
	}

	for _, name := range []string{models.DocPredictions, models.DocStats, models.DocTeams} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := os.ReadFile(filepath.Join(s.sportDir(sport), gen, name+docFileSuffix))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s document: %w", name, err)
		}
		if err := decode(docs, name, body); err != nil {
			return nil, err
		}
	}
	docs.Normalize()
	return docs, nil
}

func (s *FileStore) current(sport models.Sport) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.sportDir(sport), currentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s pointer: %w", currentFile, err)
	}
	gen := strings.TrimSpace(string(b))
	if !strings.HasPrefix(gen, genPrefix) || strings.ContainsRune(gen, filepath.Separator) {
		return "", fmt.Errorf("corrupt %s pointer %q", currentFile, gen)
	}
	return gen, nil
}

func (s *FileStore) Commit(ctx context.Context, sport models.Sport, docs *models.Documents) error {
	parts, err := encode(sport, docs)
	if err != nil {
		return err
	}

	base := s.sportDir(sport)
	gen := genPrefix + uuid.NewString()
	genDir := filepath.Join(base, gen)
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		return &models.PersistenceWriteError{Document: "generation", Err: err}
	}

	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			_ = os.RemoveAll(genDir)
			return &models.PersistenceWriteError{Document: p.name, Err: err}
		}
		if err := s.writeFile(filepath.Join(genDir, p.name+docFileSuffix), p.body); err != nil {
			_ = os.RemoveAll(genDir)
			return &models.PersistenceWriteError{Document: p.name, Err: err}
		}
	}
	if err := syncDir(genDir); err != nil {
		_ = os.RemoveAll(genDir)
		return &models.PersistenceWriteError{Document: "generation", Err: err}
	}

	tmp := filepath.Join(base, currentFile+".tmp")
	if err := s.writeFile(tmp, []byte(gen+"\n")); err != nil {
		_ = os.RemoveAll(genDir)
		return &models.PersistenceWriteError{Document: currentFile, Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(base, currentFile)); err != nil {
		_ = os.RemoveAll(genDir)
		return &models.PersistenceWriteError{Document: currentFile, Err: err}
	}
	if err := syncDir(base); err != nil {
		return &models.PersistenceWriteError{Document: currentFile, Err: err}
	}

	s.prune(base, gen)
	return nil
}

// prune removes generations older than the newest keepPrevious, never the live one.
// Failures are ignored: stale generations are harmless.
func (s *FileStore) prune(base, live string) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return
	}
	type genInfo struct {
		name string
		mod  int64
	}
	var gens []genInfo
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), genPrefix) || e.Name() == live {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		gens = append(gens, genInfo{name: e.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i].mod > gens[j].mod })
	for i := keepPrevious; i < len(gens); i++ {
		_ = os.RemoveAll(filepath.Join(base, gens[i].name))
	}
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
