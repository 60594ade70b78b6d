package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feid-go/internal/config"
	"feid-go/internal/feid"
)

// NewDatabaseFromConfig creates a Cache implementation based on the database config type.
// Each profile gets its own database file.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, profileID string, now func() time.Time) (feid.Cache, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, profileID+".db"), now)
	case "memory":
		return NewSQLiteDatabase(":memory:", now)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
