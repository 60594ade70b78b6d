package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"feid-go/internal/feid"
	"feid-go/internal/tables"
)

// ErrFull is returned by Save when the serialized state exceeds the maximum size.
var ErrFull = errors.New("staging area full")

// StagingArea implements feid.StagingArea using a pluggable stagingStore
// for the storage mechanics. Serialization and the size limit live here.
type StagingArea struct {
	store   stagingStore
	maxSize int64
	mu      sync.Mutex
}

var _ feid.StagingArea = (*StagingArea)(nil)

// Load returns the staged pending state keyed by table.
func (s *StagingArea) Load() (map[string]tables.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.store.Read()
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]tables.Pending{}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding staged changes: %w", err)
	}
	return decodeDocument(&doc)
}

// Save replaces the staged state. Tables without pending state are not
// written; saving nothing at all clears the store.
func (s *StagingArea) Save(pending map[string]tables.Pending) error {
	nonEmpty := make(map[string]tables.Pending, len(pending))
	for name, p := range pending {
		if !p.Empty() {
			nonEmpty[name] = p
		}
	}
	if len(nonEmpty) == 0 {
		return s.Clear()
	}

	doc, err := encodeDocument(nonEmpty)
	if err != nil {
		return fmt.Errorf("encoding staged changes: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding staged changes: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return fmt.Errorf("%w: %d bytes would exceed max size of %d bytes", ErrFull, len(data), s.maxSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Write(data)
}

// Clear removes the staged state.
func (s *StagingArea) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Remove()
}

// Size returns the serialized size of the staged state in bytes.
func (s *StagingArea) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, _, err := s.store.Read()
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}
