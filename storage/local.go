package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore is an ObjectStore over a directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir. The directory must exist.
func NewLocalStore(dir string) (*LocalStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store root %s is not a directory", dir)
	}
	return &LocalStore{root: dir}, nil
}

// Root returns the directory the store is rooted at.
func (s *LocalStore) Root() string {
	return s.root
}

// Get returns the contents of the object at path.
func (s *LocalStore) Get(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// PutIfAbsent creates the object at path. O_EXCL gives create-new
// semantics, so a concurrent writer racing on the same commit file
// loses deterministically.
func (s *LocalStore) PutIfAbsent(path string, data []byte) error {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// List returns the relative paths of all files under prefix.
func (s *LocalStore) List(prefix string) ([]string, error) {
	base := filepath.Join(s.root, filepath.FromSlash(prefix))
	var out []string

	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	sort.Strings(out)
	return out, nil
}

// cleanPrefix is shared by stores that match prefixes as strings.
func cleanPrefix(prefix string) string {
	return strings.TrimSuffix(prefix, "/")
}
