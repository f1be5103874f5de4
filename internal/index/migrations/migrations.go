// Package migrations holds the schema of the search index. The SQL files are
// embedded in the binary and applied with golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var schemaFiles embed.FS

const schemaDir = "files"

var (
	// ErrDirty means a schema change stopped part way. The index is a cache
	// of the store: delete it and run reindex.
	ErrDirty = errors.New("index schema is dirty")
	// ErrNewer means the index was written by a newer abook.
	ErrNewer = errors.New("index schema is newer than this binary")
)

// Status is the schema version of an index database.
type Status struct {
	// Version is 0 until the first migration has run.
	Version uint
	Latest  uint
	Dirty   bool
}

// Pending is the number of schema versions not yet applied.
func (s Status) Pending() uint {
	if s.Version >= s.Latest {
		return 0
	}
	return s.Latest - s.Version
}

// Current reports whether the schema is complete and at the latest version.
func (s Status) Current() bool {
	return !s.Dirty && s.Version == s.Latest
}

func (s Status) String() string {
	switch {
	case s.Dirty:
		return fmt.Sprintf("version %d (dirty)", s.Version)
	case s.Version > s.Latest:
		return fmt.Sprintf("version %d, newer than %d", s.Version, s.Latest)
	case s.Pending() > 0:
		return fmt.Sprintf("version %d, %d behind %d", s.Version, s.Pending(), s.Latest)
	}
	return fmt.Sprintf("version %d", s.Version)
}

// ReadStatus compares the schema version recorded in db with the embedded files.
func ReadStatus(db *sql.DB) (Status, error) {
	latest, err := latestVersion()
	if err != nil {
		return Status{}, err
	}
	m, err := newMigrate(db)
	if err != nil {
		return Status{}, err
	}
	// m is not closed: that would close db, which the caller owns.

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{Latest: latest}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("reading index schema version: %w", err)
	}
	return Status{Version: version, Latest: latest, Dirty: dirty}, nil
}

// Apply brings db to the latest schema. A dirty or newer schema is refused.
func Apply(db *sql.DB) error {
	st, err := ReadStatus(db)
	if err != nil {
		return err
	}
	switch {
	case st.Dirty:
		return fmt.Errorf("%w at version %d", ErrDirty, st.Version)
	case st.Version > st.Latest:
		return fmt.Errorf("%w (%d > %d)", ErrNewer, st.Version, st.Latest)
	case st.Pending() == 0:
		return nil
	}

	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying index schema %d: %w", st.Latest, err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(schemaFiles, schemaDir)
	if err != nil {
		return nil, fmt.Errorf("loading index schema: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("preparing index database: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("preparing index migrations: %w", err)
	}
	return m, nil
}

// latestVersion is the highest version among the embedded up migrations.
func latestVersion() (uint, error) {
	entries, err := fs.ReadDir(schemaFiles, schemaDir)
	if err != nil {
		return 0, fmt.Errorf("listing index schema: %w", err)
	}
	var latest uint
	for _, e := range entries {
		mig, err := source.Parse(e.Name())
		if err != nil {
			return 0, fmt.Errorf("index schema file %s: %w", e.Name(), err)
		}
		if mig.Direction == source.Up {
			latest = max(latest, mig.Version)
		}
	}
	if latest == 0 {
		return 0, errors.New("no index schema files")
	}
	return latest, nil
}
