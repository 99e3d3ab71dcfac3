package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore is the default Store: one file per digest under a single root
// directory. Writes land in a temp file first and are renamed into place,
// so a reader never observes a partially written payload. There is no
// eviction and no size bound; the cache grows until cleared.
type FSStore struct {
	root string
}

// DefaultRoot returns the per-user cache root used when none is configured.
func DefaultRoot() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "krama")
}

// NewFSStore creates a filesystem store rooted at dir, creating the
// directory lazily on first write. An empty dir selects DefaultRoot.
func NewFSStore(dir string) *FSStore {
	if dir == "" {
		dir = DefaultRoot()
	}
	return &FSStore{root: dir}
}

// Root returns the configured root directory.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) path(digest string) string {
	return filepath.Join(s.root, digest+".bin")
}

func (s *FSStore) Get(ctx context.Context, digest string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.path(digest)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat cache entry %s: %w", digest, err)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s: %w", digest, err)
	}

	return &Entry{
		Digest:    digest,
		Payload:   payload,
		CreatedAt: info.ModTime(),
	}, nil
}

func (s *FSStore) Put(ctx context.Context, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create cache root: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, "put-*")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(entry.Payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry %s: %w", entry.Digest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache entry %s: %w", entry.Digest, err)
	}

	if err := os.Rename(tmpName, s.path(entry.Digest)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit cache entry %s: %w", entry.Digest, err)
	}
	return nil
}

func (s *FSStore) Clear(ctx context.Context) error {
	names, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list cache root: %w", err)
	}

	// Entries are removed one by one rather than via RemoveAll on the
	// root, so an in-flight reader sees complete files or ENOENT.
	for _, de := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".bin") {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, de.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove cache entry %s: %w", de.Name(), err)
		}
	}
	return nil
}
