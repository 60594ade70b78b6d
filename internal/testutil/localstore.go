package testutil

import (
	"feid-go/internal/localstore"
)

// NewTestLocalStore creates a new in-memory local store for testing.
func NewTestLocalStore() *localstore.MemoryStore {
	return localstore.NewMemoryStore("test-store")
}
