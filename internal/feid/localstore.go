package feid

import (
	"context"
	"errors"
	"io"
)

// Fixed names of the objects kept in the local store.
const (
	LayoutsKey  = "layouts"
	SettingsKey = "settings"
)

// ErrNotFound is returned by LocalStore.Get when nothing is stored under a name.
var ErrNotFound = errors.New("not found")

// LocalStore is durable storage for small serialized objects, keyed by
// profile and a fixed name. Last write wins.
type LocalStore interface {
	Put(ctx context.Context, profileID, name string, r io.Reader, size int64) error

	// Get writes the object to w, or returns ErrNotFound.
	Get(ctx context.Context, profileID, name string, w io.Writer) error

	// ValidateSetup verifies that the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
