// Package storage implements the per-server, filesystem-backed blob store
// that LocalStorage RPCs (via StoreServer) operate on (spec §4.3).
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	deltaerrors "github.com/devrev/deltastore/internal/errors"
)

// LocalStorage is a per-server filesystem-backed blob store rooted at a
// base path. Keys are slash-separated and joined to the base path to form
// the physical path.
type LocalStorage struct {
	basePath string
	logger   *zap.Logger
	guard    *DiskGuard

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures a LocalStorage at construction.
type Option func(*LocalStorage)

func WithLogger(logger *zap.Logger) Option {
	return func(s *LocalStorage) { s.logger = logger }
}

func WithDiskGuard(g *DiskGuard) Option {
	return func(s *LocalStorage) { s.guard = g }
}

// New creates a LocalStorage rooted at basePath, creating the directory if
// it does not already exist.
func New(basePath string, opts ...Option) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, deltaerrors.IOError("failed to create base directory", err)
	}
	s := &LocalStorage{
		basePath: basePath,
		logger:   zap.NewNop(),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// lockFor returns the (lazily created, never removed) mutex guarding
// writes to key.
func (s *LocalStorage) lockFor(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *LocalStorage) resolve(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Put writes data at key. If overwrite is false and key already exists, it
// fails with AlreadyExists. The write is atomic: data lands in a temporary
// sibling file which is then renamed over the target.
func (s *LocalStorage) Put(key string, data []byte, overwrite bool) error {
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if s.guard != nil {
		if err := s.guard.CheckBeforeWrite(uint64(len(data))); err != nil {
			return err
		}
	}

	path := s.resolve(key)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return deltaerrors.AlreadyExistsError(key)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return deltaerrors.IOError("failed to create parent directory", err)
	}

	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return deltaerrors.IOError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return deltaerrors.IOError("failed to write temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return deltaerrors.IOError("failed to close temp file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return deltaerrors.IOError("failed to rename temp file into place", err)
	}
	return nil
}

// Get returns the entire blob stored at key, or a NotFound error carrying
// the exact marker string "Failed to retrieve object: <key>".
func (s *LocalStorage) Get(key string) ([]byte, error) {
	path := s.resolve(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, deltaerrors.NotFoundError(key)
		}
		return nil, deltaerrors.IOError(fmt.Sprintf("failed to read %s", key), err)
	}
	return data, nil
}

// Delete removes key if present. Deleting an absent key is not an error.
func (s *LocalStorage) Delete(key string) error {
	path := s.resolve(key)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return deltaerrors.IOError(fmt.Sprintf("failed to delete %s", key), err)
	}
	return nil
}

// ListObjects recursively walks the store and returns, relative to the base
// path using "/" separators, every regular file whose full path starts
// with base/prefix (a string-prefix match, not a path-boundary match). If
// the prefix names a directory that does not yet exist, it is created and
// an empty list is returned.
func (s *LocalStorage) ListObjects(prefix string) ([]string, error) {
	prefixPath := s.resolve(prefix)
	if _, err := os.Stat(prefixPath); os.IsNotExist(err) {
		if err := os.MkdirAll(prefixPath, 0o755); err != nil {
			return nil, deltaerrors.IOError("failed to create prefix directory", err)
		}
	}

	var results []string
	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasPrefix(path, prefixPath) {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		results = append(results, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, deltaerrors.IOError("failed to walk storage root", err)
	}
	sort.Strings(results)
	return results, nil
}
