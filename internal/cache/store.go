package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// Store is a content-addressed image store rooted at a local directory.
// Files are keyed by content hash and fanned out over two-character
// shard directories, so a key always has the form <hash[:2]>/<hash>.<ext>.
// Keys use forward slashes regardless of platform; they are what gets
// recorded in the output table's local_path column.
type Store struct {
	root string
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Key returns the store-relative path for a content hash and format.
func Key(hash, format string) string {
	return path.Join(hash[:2], hash+"."+format)
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the absolute filesystem path for a key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Exists reports whether a key is already present.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Write stores data under key. Writes are idempotent: if the key already
// exists the call is a no-op and the existing file is left untouched.
// The data is written to a temporary file and renamed into place so a
// reader never observes a partial file.
func (s *Store) Write(key string, data []byte) error {
	dst := s.Path(key)

	if _, err := os.Stat(dst); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", key, err)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", key, err)
	}

	// Atomic within one filesystem; a concurrent writer of the same key
	// produces identical content, so last-rename-wins is harmless.
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Open opens the file stored under key for reading.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// Read returns the full content stored under key.
func (s *Store) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
