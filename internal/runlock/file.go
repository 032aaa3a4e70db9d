package runlock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File is a Locker backed by O_EXCL lock files. A lock file older than the TTL is
// considered abandoned and is taken over.
type File struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFile returns a file locker writing lock files under dir.
func NewFile(dir string, ttl time.Duration) (*File, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &File{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (f *File) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", string(filepath.Separator), "_").Replace(key)
	return filepath.Join(f.dir, name+".lock")
}

func (f *File) Acquire(ctx context.Context, key string) (Lease, error) {
	path := f.path(key)
	token := uuid.NewString()

	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fh.WriteString(token)
			cerr := fh.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("acquire lock %s: %w", key, errors.Join(werr, cerr))
			}
			return &fileLease{path: path, token: token}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}

		info, statErr := os.Stat(path)
		if errors.Is(statErr, fs.ErrNotExist) {
			continue
		}
		if statErr != nil || f.now().Sub(info.ModTime()) < f.ttl {
			break
		}
		// Stale lock from a crashed run.
		_ = os.Remove(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, key)
}

type fileLease struct {
	path  string
	token string
}

func (l *fileLease) Release(ctx context.Context) error {
	b, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if string(b) != l.token {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
