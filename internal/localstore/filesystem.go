package localstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"feid-go/internal/feid"
)

// FileSystemStore keeps objects as files, one directory per profile:
//
//	<root>/
//	  <profileID>/
//	    layouts
//	    settings
type FileSystemStore struct {
	name string
	root string
}

// NewFileSystemStore creates a store rooted at the given path.
func NewFileSystemStore(name, root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileSystemStore{name: name, root: root}, nil
}

func (f *FileSystemStore) objectPath(profileID, name string) (string, error) {
	for _, part := range []string{profileID, name} {
		if part == "" || part != filepath.Base(part) || part == "." || part == ".." {
			return "", fmt.Errorf("invalid object path component %q", part)
		}
	}
	return filepath.Join(f.root, profileID, name), nil
}

// Put stores an object using an atomic write (temp file + rename).
func (f *FileSystemStore) Put(_ context.Context, profileID, name string, r io.Reader, size int64) error {
	dest, err := f.objectPath(profileID, name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Get writes a stored object to w.
func (f *FileSystemStore) Get(_ context.Context, profileID, name string, w io.Writer) error {
	src, err := f.objectPath(profileID, name)
	if err != nil {
		return err
	}
	file, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("object %q for profile %s: %w", name, profileID, feid.ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the root directory exists and is writable.
func (f *FileSystemStore) ValidateSetup(context.Context) error {
	info, err := os.Stat(f.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", f.root)
	}

	probe, err := os.CreateTemp(f.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("store root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// Compile-time check that FileSystemStore implements feid.LocalStore
var _ feid.LocalStore = (*FileSystemStore)(nil)
