package testutil

import (
	"feid-go/internal/staging"
)

// DefaultStagingMaxSize is the default max size for test staging areas (1MB).
const DefaultStagingMaxSize = 1 << 20

// NewTestStagingArea creates a new in-memory staging area for testing.
func NewTestStagingArea() *staging.StagingArea {
	return staging.NewMemoryStagingArea(DefaultStagingMaxSize)
}

// NewTestStagingAreaWithSize creates a new in-memory staging area with a custom max size.
func NewTestStagingAreaWithSize(maxSize int64) *staging.StagingArea {
	return staging.NewMemoryStagingArea(maxSize)
}
