package feid

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so temporary row ids and operation
// timestamps are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator mints ids for new layout nodes.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces short random ids taken from a UUID. Layout node ids
// are typed by hand on the command line, so the first group is enough.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String()[:8] }
