package testutil

import (
	"testing"
	"time"

	"feid-go/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite cache with migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T, now func() time.Time) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", now)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
