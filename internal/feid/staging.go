package feid

import "feid-go/internal/tables"

// StagingArea durably keeps the pending overlay between invocations until it
// is committed or discarded.
type StagingArea interface {
	// Load returns the staged pending state keyed by table. A staging area
	// that has never been saved returns an empty map.
	Load() (map[string]tables.Pending, error)

	// Save replaces the staged state. It fails without touching the previous
	// state if the serialized form exceeds the configured maximum size.
	Save(pending map[string]tables.Pending) error

	Clear() error
}
