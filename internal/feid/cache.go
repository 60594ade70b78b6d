package feid

import (
	"time"

	"feid-go/internal/model"
)

// Operation is one recorded CLI invocation.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "running", "success" or "error"
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// Cache keeps fetched snapshots until they are explicitly invalidated, and
// records the operation history.
type Cache interface {
	// GetSnapshot returns the cached snapshot of a table, or nil if there is none.
	GetSnapshot(table string) (*TableData, error)
	PutSnapshot(table string, data *TableData) error
	InvalidateSnapshots(tables ...string) error

	// GetSamples returns the cached sample list. ok is false on a cache miss,
	// which is distinct from a cached empty list.
	GetSamples() (samples []model.Sample, ok bool, err error)
	PutSamples(samples []model.Sample, fetchedAt time.Time) error
	InvalidateSamples() error

	CreateOperation(operation, parameters string, startedAt time.Time) (*Operation, error)
	FinishOperation(id int64, status string, finishedAt time.Time) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// CheckMigrations returns an error if the schema is not up to date.
	CheckMigrations() error

	Close() error
}
