package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// pendingFile is the name of the staged document inside the staging directory.
const pendingFile = "pending.json"

// fileStore keeps the staged document in a single file:
//
//	<staging_dir>/
//	  pending.json
type fileStore struct {
	path string
}

func (f *fileStore) Read() ([]byte, bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading staged changes: %w", err)
	}
	return data, true, nil
}

// Write replaces the document atomically (temp file + rename) so a crash
// never leaves a half-written file behind.
func (f *fileStore) Write(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".tmp-*")
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

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (f *fileStore) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing staged changes: %w", err)
	}
	return nil
}

// NewFileSystemStagingArea creates a staging area persisted under stagingDir.
// maxSize is the maximum serialized size in bytes; must be positive.
func NewFileSystemStagingArea(stagingDir string, maxSize int64) (*StagingArea, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &StagingArea{
		store:   &fileStore{path: filepath.Join(stagingDir, pendingFile)},
		maxSize: maxSize,
	}, nil
}
