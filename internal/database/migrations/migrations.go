// Package migrations embeds the cache schema and applies it with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// ErrNoSchema is returned for a database that has never been migrated.
var ErrNoSchema = errors.New("database has no schema version (needs migration)")

// Version returns the schema version of db and the latest version embedded
// in the binary.
func Version(db *sql.DB) (current, latest uint, err error) {
	m, err := newMigrate(db)
	if err != nil {
		return 0, 0, err
	}
	// m is not closed: that would close db, which belongs to the caller.

	current, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, 0, ErrNoSchema
		}
		return 0, 0, fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return current, 0, fmt.Errorf("database is dirty at version %d (a migration failed)", current)
	}

	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, 0, fmt.Errorf("reading migration files: %w", err)
	}
	defer src.Close()

	latest, err = lastVersion(src)
	if err != nil {
		return 0, 0, fmt.Errorf("finding latest migration: %w", err)
	}
	return current, latest, nil
}

// CheckDBMigrationStatus returns nil only when db is at the latest version.
func CheckDBMigrationStatus(db *sql.DB) error {
	current, latest, err := Version(db)
	if err != nil {
		return err
	}
	switch {
	case current < latest:
		return fmt.Errorf("database is at version %d but latest is %d (%d migrations behind)",
			current, latest, latest-current)
	case current > latest:
		return fmt.Errorf("database version %d is ahead of binary version %d (binary needs update)",
			current, latest)
	}
	return nil
}

// MigrateUp applies every pending migration. An up-to-date database is not an error.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("creating migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}
	return m, nil
}

// lastVersion walks the source to its highest version. Next reports the end
// of the list as an error.
func lastVersion(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, err
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}
