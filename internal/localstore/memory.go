package localstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"feid-go/internal/feid"
)

// MemoryStore keeps objects in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	name    string
	objects map[string][]byte // "profileID/name" -> object
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store with the given name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name, objects: make(map[string][]byte)}
}

func objectKey(profileID, name string) string {
	return profileID + "/" + name
}

// Put stores an object, replacing any previous one.
func (m *MemoryStore) Put(_ context.Context, profileID, name string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey(profileID, name)] = data
	return nil
}

// Get writes a stored object to w.
func (m *MemoryStore) Get(_ context.Context, profileID, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[objectKey(profileID, name)]
	if !ok {
		return fmt.Errorf("object %q for profile %s: %w", name, profileID, feid.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(context.Context) error {
	return nil
}

// Compile-time check that MemoryStore implements feid.LocalStore
var _ feid.LocalStore = (*MemoryStore)(nil)
