// Package storedb opens the SQLite files populatefs keeps on the host and
// brings their schema up to date.
//
// The schema version is SQLite's own user_version header field. Step i of
// a Schema moves a database from version i to i+1, in one transaction
// together with the version bump.
package storedb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
	_ "modernc.org/sqlite"

	"github.com/polesapart/populatefs/internal/errx"
)

// Schema lists the statements that upgrade a database one version at a
// time. Steps are only ever appended.
type Schema []string

var pragmas = []string{
	"PRAGMA busy_timeout = 15000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA journal_mode = WAL",
}

// Open opens or creates the database at path and applies the steps of
// schema it has not seen yet. A database written by a newer schema is
// refused.
func Open(path string, schema Schema) (*sql.DB, error) {
	if path == "" {
		return nil, ErrDBPathRequired
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errx.Wrap(ErrOpenDB, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errx.Wrap(ErrOpenDB, err)
	}
	// One connection keeps the pragmas and the write order of a run.
	db.SetMaxOpenConns(1)

	err = exclusive(path, func() error {
		for _, pragma := range pragmas {
			if _, err := db.Exec(pragma); err != nil {
				return errx.With(ErrConfigureDB, ": %s: %w", pragma, err)
			}
		}
		return upgrade(db, schema)
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// exclusive runs fn holding an flock on a sidecar of path, so concurrent
// runs sharing one database do not upgrade it twice. Closing the file
// drops the lock.
func exclusive(path string, fn func() error) error {
	f, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return errx.Wrap(ErrLockDB, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return errx.Wrap(ErrLockDB, err)
	}
	return fn()
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, errx.Wrap(ErrSchemaVersion, err)
	}
	return v, nil
}

func upgrade(db *sql.DB, schema Schema) error {
	current, err := schemaVersion(db)
	if err != nil {
		return err
	}
	if current > len(schema) {
		return errx.With(ErrSchemaTooNew, ": version %d, newest known %d", current, len(schema))
	}
	for v := current; v < len(schema); v++ {
		if err := step(db, v+1, schema[v]); err != nil {
			return err
		}
	}
	return nil
}

func step(db *sql.DB, version int, stmt string) error {
	tx, err := db.Begin()
	if err != nil {
		return errx.With(ErrUpgradeSchema, " to version %d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return errx.With(ErrUpgradeSchema, " to version %d: %w", version, err)
	}
	// PRAGMA takes no bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return errx.With(ErrUpgradeSchema, " to version %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return errx.With(ErrUpgradeSchema, " to version %d: commit: %w", version, err)
	}
	return nil
}
